package event

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loykin/observr/internal/changelog"
	"github.com/loykin/observr/internal/history"
	"github.com/loykin/observr/internal/metrics"
)

// LogHandler is the default Handler: it echoes each event through slog,
// appends it to the change log and forwards it to any configured history
// sinks. Directory modification events are suppressed from the change log;
// every child change also touches the parent directory and recording those
// would drown the real entries.
type LogHandler struct {
	logger  *slog.Logger
	changes *changelog.Log

	mu    sync.Mutex
	sinks []history.Sink
}

// NewLogHandler builds a LogHandler writing to changes. A nil logger falls
// back to slog.Default().
func NewLogHandler(logger *slog.Logger, changes *changelog.Log) *LogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{logger: logger, changes: changes}
}

// SetSinks configures external history sinks (SQLite, PostgreSQL, ClickHouse,
// OpenSearch). Passing nil or no sinks clears the list.
func (h *LogHandler) SetSinks(sinks ...history.Sink) {
	h.mu.Lock()
	h.sinks = append([]history.Sink(nil), sinks...)
	h.mu.Unlock()
}

// Changes returns the change log the handler writes to.
func (h *LogHandler) Changes() *changelog.Log { return h.changes }

// Dispatch records the event for the named observer.
func (h *LogHandler) Dispatch(e Event, observer string) error {
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}

	if !e.IsDir {
		h.logger.Info("watched",
			"observer", observer,
			"type", string(e.Type),
			"path", trimToName(e.Path, observer))
	}

	if e.Type == Modified && e.IsDir {
		metrics.IncSuppressed(observer)
		return nil
	}

	metrics.IncEvent(observer, string(e.Type))

	start := time.Now()
	if err := h.changes.Record(string(e.Type), observer, e.Path); err != nil {
		return fmt.Errorf("failed to record %s event for %q: %w", e.Type, observer, err)
	}
	metrics.ObserveRecordDuration(observer, time.Since(start).Seconds())

	h.mu.Lock()
	sinks := append([]history.Sink(nil), h.sinks...)
	h.mu.Unlock()
	if len(sinks) > 0 {
		at := e.At
		if at.IsZero() {
			at = time.Now().UTC()
		}
		evt := history.Event{
			Observer:   observer,
			Type:       string(e.Type),
			Path:       e.Path,
			IsDir:      e.IsDir,
			OccurredAt: at,
		}
		for _, s := range sinks {
			_ = s.Send(context.Background(), evt)
		}
	}
	return nil
}

// trimToName shortens path to start at the observer name when the name
// appears in it, keeping log lines compact.
func trimToName(path, name string) string {
	if idx := strings.Index(path, name); idx >= 0 {
		return path[idx:]
	}
	return path
}
