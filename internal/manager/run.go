package manager

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/loykin/observr/internal/logger"
	"github.com/loykin/observr/internal/observer"
)

// StartMethod selects how StartAll runs a batch of observers.
type StartMethod string

const (
	// MethodThread runs each observer in its own goroutine.
	MethodThread StartMethod = "thread"
	// MethodProcess launches a separate watch process per observer.
	MethodProcess StartMethod = "process"
)

// ParseStartMethod maps a flag value onto a StartMethod. An empty value
// selects MethodThread.
func ParseStartMethod(s string) (StartMethod, error) {
	switch StartMethod(s) {
	case MethodThread, "":
		return MethodThread, nil
	case MethodProcess:
		return MethodProcess, nil
	default:
		return "", fmt.Errorf("unknown start method %q", s)
	}
}

// Start runs the named observer and blocks until duration elapses, ctx is
// canceled, an interrupt or termination signal arrives, or the observer is
// stopped from elsewhere. A duration of zero keeps the observer alive
// until one of the other conditions fires.
func (m *Manager) Start(ctx context.Context, name string, duration time.Duration) error {
	o, err := m.observers.Lookup(name)
	if err != nil {
		return err
	}
	return m.run(ctx, o, duration)
}

// StartAll resolves every name, then runs the batch with the given method
// and blocks until all observers finish. Names are resolved up front so an
// unknown name fails the call before anything starts.
func (m *Manager) StartAll(ctx context.Context, names []string, method StartMethod, duration time.Duration) error {
	batch := make([]*observer.Observer, 0, len(names))
	for _, name := range names {
		o, err := m.observers.Lookup(name)
		if err != nil {
			return err
		}
		batch = append(batch, o)
	}

	switch method {
	case MethodThread, "":
		return m.runThreads(ctx, batch, duration)
	case MethodProcess:
		return m.runProcesses(ctx, batch, duration)
	default:
		return fmt.Errorf("unknown start method %q", method)
	}
}

// run starts o and keeps it joined until something ends the watch. The
// periodic tick notices observers stopped through the manager or the API
// while a Start call is blocked on them.
func (m *Manager) run(ctx context.Context, o *observer.Observer, duration time.Duration) error {
	if err := o.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var expired <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		expired = timer.C
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return o.Stop()
		case sig := <-sigCh:
			m.logger.Info("signal received", "observer", o.Name(), "signal", sig.String())
			return o.Stop()
		case <-expired:
			return o.Stop()
		case <-ticker.C:
			if !o.Running() {
				return nil
			}
		}
	}
}

func (m *Manager) runThreads(ctx context.Context, batch []*observer.Observer, duration time.Duration) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, o := range batch {
		wg.Add(1)
		go func(o *observer.Observer) {
			defer wg.Done()
			if err := m.run(ctx, o, duration); err != nil {
				m.logger.Error("observer run failed", "observer", o.Name(), "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(o)
	}

	wg.Wait()
	return firstErr
}

func (m *Manager) runProcesses(ctx context.Context, batch []*observer.Observer, duration time.Duration) error {
	m.mu.RLock()
	spawn := m.spawn
	m.mu.RUnlock()
	if spawn == nil {
		spawn = SelfSpawn(logger.Config{})
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, o := range batch {
		wg.Add(1)
		go func(o *observer.Observer) {
			defer wg.Done()
			if err := spawn(ctx, o.Name(), o.Path(), duration); err != nil {
				m.logger.Error("watch process failed", "observer", o.Name(), "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(o)
	}

	wg.Wait()
	return firstErr
}
