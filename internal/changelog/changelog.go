package changelog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// EventTypes are the keys of the change log document, in the order events
// are classified.
var EventTypes = []string{"created", "deleted", "modified", "moved", "closed"}

// Data is the change log document: event type -> observer -> recorded paths.
type Data map[string]map[string][]string

// Log appends filesystem change records to a single JSON file. Every record
// re-reads the document, folds the new path in and writes the whole document
// back, so concurrent writers are serialized on the Log's mutex.
type Log struct {
	mu   sync.Mutex
	file string
}

// New returns a Log writing to file. The file and its directory are created
// on first record.
func New(file string) *Log {
	return &Log{file: file}
}

// File returns the change log path.
func (l *Log) File() string { return l.file }

// Record adds path under eventType/observer. Paths already recorded for the
// same observer and event type are not duplicated. An unreadable or
// malformed document is replaced by a fresh one.
func (l *Log) Record(eventType, observer, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := l.read()
	byObserver, ok := data[eventType]
	if !ok {
		byObserver = make(map[string][]string)
		data[eventType] = byObserver
	}
	paths := byObserver[observer]
	for _, p := range paths {
		if p == path {
			return l.write(data)
		}
	}
	byObserver[observer] = append(paths, path)
	return l.write(data)
}

// Snapshot returns the current document. Missing or malformed files yield a
// document with all event type keys and no records.
func (l *Log) Snapshot() Data {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// read loads the document, falling back to an empty skeleton with every
// event type key present.
func (l *Log) read() Data {
	data := make(Data, len(EventTypes))
	raw, err := os.ReadFile(l.file)
	if err == nil {
		if err := json.Unmarshal(raw, &data); err != nil {
			data = make(Data, len(EventTypes))
		}
	}
	for _, t := range EventTypes {
		if _, ok := data[t]; !ok {
			data[t] = make(map[string][]string)
		}
	}
	return data
}

func (l *Log) write(data Data) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode change log: %w", err)
	}
	if dir := filepath.Dir(l.file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create change log directory: %w", err)
		}
	}
	if err := os.WriteFile(l.file, raw, 0o644); err != nil {
		return fmt.Errorf("failed to save change log: %w", err)
	}
	return nil
}
