// Package manager creates named observers and coordinates how they run.
package manager

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/loykin/observr/internal/event"
	"github.com/loykin/observr/internal/namegen"
	"github.com/loykin/observr/internal/observer"
	"github.com/loykin/observr/internal/registry"
)

// Manager owns the observer collection. Every observer it creates shares
// one event handler, so all watched paths feed the same changelog and
// history sinks.
type Manager struct {
	mu        sync.RWMutex
	handler   event.Handler
	names     *namegen.Generator
	observers *registry.Registry[*observer.Observer]
	logger    *slog.Logger
	spawn     SpawnFunc
}

// New builds a manager dispatching through handler and deriving observer
// names with names. A nil logger falls back to slog.Default().
func New(handler event.Handler, names *namegen.Generator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		handler: handler,
		names:   names,
		observers: registry.New(func(o *observer.Observer) string {
			return o.Name()
		}),
		logger: logger,
	}
}

// SetSpawner overrides how MethodProcess launches per-observer watch
// processes. The default re-executes the current binary.
func (m *Manager) SetSpawner(fn SpawnFunc) {
	m.mu.Lock()
	m.spawn = fn
	m.mu.Unlock()
}

// Create registers a new observer for path. When name is empty a name is
// derived from the path's last segment. The observer is not started.
func (m *Manager) Create(path, name string) (*observer.Observer, error) {
	if name == "" {
		name = namegen.Generate(path)
	}
	o := observer.New(name, path, m.handler, m.logger)
	if err := m.observers.Append(o); err != nil {
		return nil, fmt.Errorf("failed to create observer for %s: %w", path, err)
	}
	m.logger.Info("observer created", "observer", name, "path", path)
	return o, nil
}

// CreateAll registers one observer per path. Names are generated for the
// whole batch at once so paths sharing a last segment are widened against
// each other, and the chosen positions are persisted. Observers created
// before a failure stay registered.
func (m *Manager) CreateAll(paths []string) ([]*observer.Observer, error) {
	generated, err := m.names.GenerateAll(paths)
	if err != nil {
		return nil, err
	}
	created := make([]*observer.Observer, 0, len(paths))
	for i, path := range paths {
		o, err := m.Create(path, generated[i])
		if err != nil {
			return created, err
		}
		created = append(created, o)
	}
	return created, nil
}

// Get returns the observer registered under name.
func (m *Manager) Get(name string) (*observer.Observer, error) {
	return m.observers.Lookup(name)
}

// All returns the registered observers in creation order.
func (m *Manager) All() []*observer.Observer {
	return m.observers.All()
}

// Names returns the registered observer names in creation order.
func (m *Manager) Names() []string {
	return m.observers.Names()
}

// Stop halts the named observer's watch loop. The observer stays
// registered and may be started again.
func (m *Manager) Stop(name string) error {
	o, err := m.observers.Lookup(name)
	if err != nil {
		return err
	}
	return o.Stop()
}

// StopAll halts every running observer and reports the first failure.
func (m *Manager) StopAll() error {
	var firstErr error
	for _, o := range m.observers.All() {
		if err := o.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Remove stops the named observer and drops it from the collection.
func (m *Manager) Remove(name string) error {
	o, err := m.observers.Lookup(name)
	if err != nil {
		return err
	}
	if err := o.Stop(); err != nil {
		return err
	}
	return m.observers.Remove(name)
}

// Status describes one observer for status listings.
type Status struct {
	Name  string         `json:"name"`
	Path  string         `json:"path"`
	State observer.State `json:"state"`
}

// Status returns the named observer's current status.
func (m *Manager) Status(name string) (Status, error) {
	o, err := m.observers.Lookup(name)
	if err != nil {
		return Status{}, err
	}
	return Status{Name: o.Name(), Path: o.Path(), State: o.State()}, nil
}

// StatusAll returns the status of every registered observer in creation
// order.
func (m *Manager) StatusAll() []Status {
	all := m.observers.All()
	out := make([]Status, 0, len(all))
	for _, o := range all {
		out = append(out, Status{Name: o.Name(), Path: o.Path(), State: o.State()})
	}
	return out
}
