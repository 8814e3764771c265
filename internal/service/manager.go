package service

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/loykin/observr/internal/autostart"
	"github.com/loykin/observr/internal/metrics"
	"github.com/loykin/observr/internal/namegen"
	"github.com/loykin/observr/internal/registry"
)

// Manager defines, discovers, and controls background watch services held
// in one service directory.
type Manager struct {
	dir          string
	autostartDir string
	services     *registry.Registry[*Service]
	logger       *slog.Logger

	// seams for tests
	runner   func(command string) error
	execPath func() (string, error)
}

// NewManager builds a service manager rooted at dir, creating the
// directory when missing. An empty dir selects DefaultDir; a nil logger
// falls back to slog.Default().
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create service directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir: dir,
		services: registry.New(func(s *Service) string {
			return s.Name
		}),
		logger: logger,
		runner: func(command string) error {
			return exec.Command("/bin/sh", "-c", command).Run()
		},
		execPath: os.Executable,
	}, nil
}

// Dir returns the service directory.
func (m *Manager) Dir() string { return m.dir }

// SetAutostartDir overrides where login autostart entries are installed.
// The default is the user's session autostart directory.
func (m *Manager) SetAutostartDir(dir string) { m.autostartDir = dir }

// Get returns the service registered under name.
func (m *Manager) Get(name string) (*Service, error) {
	return m.services.Lookup(name)
}

// All returns the registered services in definition order.
func (m *Manager) All() []*Service {
	return m.services.All()
}

// Define writes the launcher artifact for path and registers the service.
// When name is empty it is derived from the path's last segment; either
// way the stored name is lower-cased.
func (m *Manager) Define(path, name string, runOnStartup bool) (*Service, error) {
	if name == "" {
		name = namegen.Generate(path)
	}
	name = strings.ToLower(name)

	svc := &Service{Name: name, Path: path, RunOnStartup: runOnStartup, Dir: m.dir}
	if err := m.services.Append(svc); err != nil {
		return nil, fmt.Errorf("failed to define service for %s: %w", path, err)
	}

	exe, err := m.execPath()
	if err != nil {
		_ = m.services.Remove(name)
		return nil, fmt.Errorf("failed to resolve executable: %w", err)
	}
	if err := os.WriteFile(svc.Artifact(), []byte(svc.script(exe)), 0o755); err != nil {
		_ = m.services.Remove(name)
		return nil, fmt.Errorf("failed to write service artifact: %w", err)
	}

	m.logger.Info("service defined", "service", name, "path", path, "artifact", svc.Artifact())
	return svc, nil
}

// Discover scans the service directory and registers one service per
// artifact, restoring the run-on-startup flag from the file name marker
// and the watched path from the artifact itself. Already-registered names
// are left as they are. It fails with ErrNoServices when the directory
// holds no artifacts.
func (m *Manager) Discover() ([]*Service, error) {
	matches, err := filepath.Glob(filepath.Join(m.dir, "*"+artifactExt))
	if err != nil {
		return nil, fmt.Errorf("failed to scan service directory: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%s: %w", m.dir, ErrNoServices)
	}

	found := make([]*Service, 0, len(matches))
	for _, file := range matches {
		base := strings.TrimSuffix(filepath.Base(file), artifactExt)
		runOnStartup := strings.HasSuffix(base, startupMarker)
		name := strings.TrimSuffix(base, startupMarker)

		var path string
		if data, err := os.ReadFile(file); err == nil {
			path = artifactPath(string(data))
		}

		svc := &Service{Name: name, Path: path, RunOnStartup: runOnStartup, Dir: m.dir}
		if m.services.Contains(name) {
			continue
		}
		if err := m.services.Append(svc); err != nil {
			return nil, err
		}
		found = append(found, svc)
	}
	return found, nil
}

// Launch starts the named service detached via the OS shell so it
// outlives this process. Output is appended to out, or to the service's
// default output file when out is empty. Services flagged run-on-startup
// also get a login autostart entry whose Exec repeats the same command.
func (m *Manager) Launch(name, out string) error {
	svc, err := m.services.Lookup(name)
	if err != nil {
		return err
	}

	command := svc.LaunchCommand(out)
	if err := m.runner(command); err != nil {
		return fmt.Errorf("failed to launch service %q: %w", name, err)
	}
	metrics.IncServiceLaunch(name)

	if svc.RunOnStartup {
		entry := autostart.New(svc.Name, command)
		if err := entry.Write(svc.AutostartFile()); err != nil {
			return err
		}
		dir := m.autostartDir
		if dir == "" {
			if dir, err = autostart.SystemDir(); err != nil {
				return err
			}
		}
		if err := entry.Write(filepath.Join(dir, autostart.FileName(svc.Name))); err != nil {
			return err
		}
	}

	m.logger.Info("service launched", "service", name, "command", command)
	return nil
}

// PID resolves the named service's process id by scanning the current
// user's processes for the artifact path in the command line.
func (m *Manager) PID(name string) (int32, error) {
	proc, err := m.find(name)
	if err != nil {
		return 0, err
	}
	return proc.Pid, nil
}

// Signal sends sig to the named service's process.
func (m *Manager) Signal(name string, sig syscall.Signal) error {
	proc, err := m.find(name)
	if err != nil {
		return err
	}
	if err := proc.SendSignal(sig); err != nil {
		return fmt.Errorf("failed to signal service %q: %w", name, err)
	}
	return nil
}

// Stop kills the named service's process.
func (m *Manager) Stop(name string) error {
	if err := m.Signal(name, syscall.SIGKILL); err != nil {
		return err
	}
	metrics.IncServiceStop(name)
	m.logger.Info("service stopped", "service", name)
	return nil
}

// Remove forgets the named service and deletes its files: artifact,
// output, and any autostart entries. The process, if running, is left
// alone; callers wanting a clean stop call Stop first.
func (m *Manager) Remove(name string) error {
	svc, err := m.services.Lookup(name)
	if err != nil {
		return err
	}

	targets := []string{svc.Artifact(), svc.Output(), svc.AutostartFile()}
	if dir := m.autostartDir; dir != "" {
		targets = append(targets, filepath.Join(dir, autostart.FileName(svc.Name)))
	} else if dir, err := autostart.SystemDir(); err == nil {
		targets = append(targets, filepath.Join(dir, autostart.FileName(svc.Name)))
	}

	var firstErr error
	for _, t := range targets {
		if err := os.Remove(t); err != nil && !errors.Is(err, fs.ErrNotExist) && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove %s: %w", t, err)
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return m.services.Remove(name)
}

// find scans the process table for the service's artifact path, limited
// to processes owned by the current user.
func (m *Manager) find(name string) (*gopsproc.Process, error) {
	svc, err := m.services.Lookup(name)
	if err != nil {
		return nil, err
	}
	token := svc.Artifact()

	procs, err := gopsproc.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var current string
	if u, err := user.Current(); err == nil {
		current = u.Username
	}
	self := int32(os.Getpid())

	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		if current != "" {
			if owner, err := p.Username(); err == nil && owner != current {
				continue
			}
		}
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		if strings.Contains(cmdline, token) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("service %q: %w", name, ErrPIDNotFound)
}
