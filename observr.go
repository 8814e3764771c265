package observr

import (
	"context"
	"log/slog"
	"net/http"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/observr/internal/changelog"
	cfg "github.com/loykin/observr/internal/config"
	"github.com/loykin/observr/internal/event"
	"github.com/loykin/observr/internal/history"
	"github.com/loykin/observr/internal/manager"
	"github.com/loykin/observr/internal/metrics"
	"github.com/loykin/observr/internal/namegen"
	"github.com/loykin/observr/internal/observer"
	iapi "github.com/loykin/observr/internal/server"
	"github.com/loykin/observr/internal/service"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Observer = observer.Observer

type State = observer.State

type Status = manager.Status

type StartMethod = manager.StartMethod

type ChangeData = changelog.Data

type HistorySink = history.Sink

type Service = service.Service

type Config = cfg.FileConfig

const (
	StateCreated = observer.StateCreated
	StateRunning = observer.StateRunning
	StateStopped = observer.StateStopped

	MethodThread  = manager.MethodThread
	MethodProcess = manager.MethodProcess
)

// Manager is a thin facade over internal/manager.Manager.
// It provides a stable public API for embedding.

type Manager struct {
	inner   *manager.Manager
	handler *event.LogHandler
	changes *changelog.Log
}

// New builds a manager recording changes to changelogFile and observer
// name positions to positionsFile. Empty arguments select the default
// files under the log directory. Logging goes through slog.Default().
func New(changelogFile, positionsFile string) *Manager {
	fc := &cfg.FileConfig{Changelog: changelogFile, Positions: positionsFile}
	log := slog.Default()
	changes := changelog.New(fc.ChangelogFile())
	handler := event.NewLogHandler(log, changes)
	return &Manager{
		inner:   manager.New(handler, namegen.New(fc.PositionFile()), log),
		handler: handler,
		changes: changes,
	}
}

func (m *Manager) SetSinks(sinks ...HistorySink) { m.handler.SetSinks(sinks...) }

func (m *Manager) Create(path, name string) (*Observer, error) { return m.inner.Create(path, name) }
func (m *Manager) CreateAll(paths []string) ([]*Observer, error) {
	return m.inner.CreateAll(paths)
}
func (m *Manager) Start(ctx context.Context, name string, duration time.Duration) error {
	return m.inner.Start(ctx, name, duration)
}
func (m *Manager) StartAll(ctx context.Context, names []string, method StartMethod, duration time.Duration) error {
	return m.inner.StartAll(ctx, names, method, duration)
}
func (m *Manager) Stop(name string) error             { return m.inner.Stop(name) }
func (m *Manager) StopAll() error                     { return m.inner.StopAll() }
func (m *Manager) Remove(name string) error           { return m.inner.Remove(name) }
func (m *Manager) Status(name string) (Status, error) { return m.inner.Status(name) }
func (m *Manager) StatusAll() []Status                { return m.inner.StatusAll() }
func (m *Manager) Names() []string                    { return m.inner.Names() }

// Changes returns the current change log document.
func (m *Manager) Changes() ChangeData { return m.changes.Snapshot() }

// ParseStartMethod maps a string onto a StartMethod.
func ParseStartMethod(s string) (StartMethod, error) { return manager.ParseStartMethod(s) }

// ParseSignal maps a signal name or number onto a syscall.Signal.
func ParseSignal(s string) (syscall.Signal, error) { return service.ParseSignal(s) }

// ServiceManager facade
type ServiceManager struct{ inner *service.Manager }

// NewServiceManager builds a service manager rooted at dir. An empty dir
// selects the default service directory.
func NewServiceManager(dir string) (*ServiceManager, error) {
	inner, err := service.NewManager(dir, slog.Default())
	if err != nil {
		return nil, err
	}
	return &ServiceManager{inner: inner}, nil
}

func (s *ServiceManager) Define(path, name string, runOnStartup bool) (*Service, error) {
	return s.inner.Define(path, name, runOnStartup)
}
func (s *ServiceManager) Discover() ([]*Service, error) { return s.inner.Discover() }
func (s *ServiceManager) Launch(name, out string) error { return s.inner.Launch(name, out) }
func (s *ServiceManager) Stop(name string) error        { return s.inner.Stop(name) }
func (s *ServiceManager) Signal(name string, sig syscall.Signal) error {
	return s.inner.Signal(name, sig)
}
func (s *ServiceManager) PID(name string) (int32, error) { return s.inner.PID(name) }
func (s *ServiceManager) Remove(name string) error       { return s.inner.Remove(name) }
func (s *ServiceManager) All() []*Service                { return s.inner.All() }

func LoadConfig(path string) (*Config, error) {
	return cfg.Load(path)
}

// NewHTTPServer starts an HTTP server exposing the internal API using the
// given managers.
func NewHTTPServer(addr, basePath string, m *Manager, s *ServiceManager) (*http.Server, error) {
	r := iapi.NewRouter(m.inner, s.inner, m.changes, basePath)
	return iapi.NewServer(addr, r)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           nil,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
