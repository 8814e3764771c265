// Package observer watches a single filesystem path and forwards each
// change to an event handler tagged with the observer's name.
package observer

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/loykin/observr/internal/event"
	"github.com/loykin/observr/internal/metrics"
)

// State describes where an observer is in its lifecycle.
type State string

const (
	// StateCreated means the observer exists but has never been started.
	StateCreated State = "created"
	// StateRunning means the watch loop is active.
	StateRunning State = "running"
	// StateStopped means the observer was started and later stopped.
	StateStopped State = "stopped"
)

// Observer monitors one path with fsnotify and dispatches every change
// through the shared handler. The path itself is watched, not its subtree.
type Observer struct {
	name    string
	path    string
	handler event.Handler
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// New returns an observer for path that reports events under name.
// The watch does not begin until Start is called.
func New(name, path string, handler event.Handler, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		name:    name,
		path:    path,
		handler: handler,
		logger:  logger,
		state:   StateCreated,
	}
}

// Name returns the observer's unique name.
func (o *Observer) Name() string { return o.name }

// Path returns the watched path.
func (o *Observer) Path() string { return o.path }

// State returns the current lifecycle state.
func (o *Observer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Running reports whether the watch loop is active.
func (o *Observer) Running() bool {
	return o.State() == StateRunning
}

// Start begins watching the observer's path. A stopped observer may be
// started again; starting a running observer is an error.
func (o *Observer) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateRunning {
		return fmt.Errorf("observer %q already running", o.name)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher for %q: %w", o.name, err)
	}
	if err := w.Add(o.path); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", o.path, err)
	}

	o.watcher = w
	o.done = make(chan struct{})
	o.state = StateRunning

	o.wg.Add(1)
	go o.loop(w, o.done)

	metrics.SetObserverRunning(o.name, true)
	o.logger.Info("observer started", "observer", o.name, "path", o.path)
	return nil
}

// Stop ends the watch and blocks until the event loop has exited.
// Stopping an observer that is not running is a no-op. Stop is safe to
// call from any goroutine.
func (o *Observer) Stop() error {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return nil
	}
	w := o.watcher
	done := o.done
	o.watcher = nil
	o.state = StateStopped
	o.mu.Unlock()

	close(done)
	err := w.Close()
	o.wg.Wait()

	metrics.SetObserverRunning(o.name, false)
	o.logger.Info("observer stopped", "observer", o.name, "path", o.path)
	if err != nil {
		return fmt.Errorf("failed to close watcher for %q: %w", o.name, err)
	}
	return nil
}

// loop drains fsnotify until the watcher closes or done is signaled.
func (o *Observer) loop(w *fsnotify.Watcher, done chan struct{}) {
	defer o.wg.Done()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			e, ok := convert(ev)
			if !ok {
				continue
			}
			if err := o.handler.Dispatch(e, o.name); err != nil {
				o.logger.Error("failed to handle event",
					"observer", o.name, "type", string(e.Type), "path", e.Path, "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			o.logger.Error("watch error", "observer", o.name, "error", err)
		}
	}
}

// convert maps an fsnotify notification onto an event. Chmod-only
// notifications carry no content change and are dropped.
func convert(ev fsnotify.Event) (event.Event, bool) {
	var t event.Type
	switch {
	case ev.Op.Has(fsnotify.Create):
		t = event.Created
	case ev.Op.Has(fsnotify.Write):
		t = event.Modified
	case ev.Op.Has(fsnotify.Remove):
		t = event.Deleted
	case ev.Op.Has(fsnotify.Rename):
		t = event.Moved
	default:
		return event.Event{}, false
	}

	isDir := false
	if fi, err := os.Stat(ev.Name); err == nil {
		isDir = fi.IsDir()
	}

	return event.Event{Type: t, Path: ev.Name, IsDir: isDir, At: time.Now()}, true
}
