package changelog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "changes.json"))
}

func TestRecordCreatesDocumentWithAllEventTypes(t *testing.T) {
	l := newTestLog(t)

	if err := l.Record("created", "logs", "/srv/logs/app.log"); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}

	raw, err := os.ReadFile(l.File())
	if err != nil {
		t.Fatalf("expected change log file to exist: %v", err)
	}
	var onDisk map[string]map[string][]string
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("change log is not valid JSON: %v", err)
	}

	for _, eventType := range EventTypes {
		if _, ok := onDisk[eventType]; !ok {
			t.Errorf("expected key %q in document", eventType)
		}
	}
	got := onDisk["created"]["logs"]
	if len(got) != 1 || got[0] != "/srv/logs/app.log" {
		t.Errorf("unexpected created/logs paths: %v", got)
	}
}

func TestRecordDeduplicatesPaths(t *testing.T) {
	l := newTestLog(t)

	for i := 0; i < 3; i++ {
		if err := l.Record("modified", "logs", "/srv/logs/app.log"); err != nil {
			t.Fatalf("unexpected record error: %v", err)
		}
	}
	if err := l.Record("modified", "logs", "/srv/logs/other.log"); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}

	data := l.Snapshot()
	paths := data["modified"]["logs"]
	if len(paths) != 2 {
		t.Fatalf("expected 2 distinct paths, got %v", paths)
	}
}

func TestRecordPreservesOtherEntries(t *testing.T) {
	l := newTestLog(t)

	if err := l.Record("created", "logs", "/srv/logs/a"); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	if err := l.Record("deleted", "data", "/srv/data/b"); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	if err := l.Record("created", "data", "/srv/data/c"); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}

	data := l.Snapshot()
	if got := data["created"]["logs"]; len(got) != 1 || got[0] != "/srv/logs/a" {
		t.Errorf("created/logs lost: %v", got)
	}
	if got := data["deleted"]["data"]; len(got) != 1 || got[0] != "/srv/data/b" {
		t.Errorf("deleted/data lost: %v", got)
	}
	if got := data["created"]["data"]; len(got) != 1 || got[0] != "/srv/data/c" {
		t.Errorf("created/data lost: %v", got)
	}
}

func TestRecordReplacesMalformedDocument(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "changes.json")
	if err := os.WriteFile(file, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	l := New(file)
	if err := l.Record("moved", "logs", "/srv/logs/x"); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}

	data := l.Snapshot()
	if got := data["moved"]["logs"]; len(got) != 1 || got[0] != "/srv/logs/x" {
		t.Errorf("expected fresh document with new record, got %v", data)
	}
}

func TestSnapshotMissingFileYieldsSkeleton(t *testing.T) {
	l := newTestLog(t)

	data := l.Snapshot()
	if len(data) != len(EventTypes) {
		t.Fatalf("expected %d keys, got %d", len(EventTypes), len(data))
	}
	for _, eventType := range EventTypes {
		if data[eventType] == nil {
			t.Errorf("expected empty map for %q", eventType)
		}
	}
}

func TestConcurrentRecordsAllSurvive(t *testing.T) {
	l := newTestLog(t)

	const observers = 4
	const paths = 10

	var wg sync.WaitGroup
	for o := 0; o < observers; o++ {
		wg.Add(1)
		go func(o int) {
			defer wg.Done()
			name := fmt.Sprintf("obs-%d", o)
			for p := 0; p < paths; p++ {
				path := fmt.Sprintf("/watched/%d/file-%d", o, p)
				if err := l.Record("created", name, path); err != nil {
					t.Errorf("record failed: %v", err)
					return
				}
			}
		}(o)
	}
	wg.Wait()

	data := l.Snapshot()
	for o := 0; o < observers; o++ {
		name := fmt.Sprintf("obs-%d", o)
		got := data["created"][name]
		if len(got) != paths {
			t.Errorf("observer %s: expected %d paths, got %d", name, paths, len(got))
		}
	}
}
