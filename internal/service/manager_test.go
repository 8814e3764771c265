package service

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/loykin/observr/internal/autostart"
	"github.com/loykin/observr/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "svcdir"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	m.execPath = func() (string, error) { return "/usr/local/bin/observr", nil }
	m.SetAutostartDir(filepath.Join(t.TempDir(), "autostart"))
	return m
}

// commandRecorder replaces the shell runner so launches stay in-process.
type commandRecorder struct {
	mu       sync.Mutex
	commands []string
	err      error
}

func (c *commandRecorder) run(command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, command)
	return c.err
}

func TestDefineDerivesLowerCasedName(t *testing.T) {
	m := newTestManager(t)

	svc, err := m.Define("/watched/Media", "", false)
	require.NoError(t, err)
	assert.Equal(t, "media", svc.Name)
	assert.Equal(t, "/watched/Media", svc.Path)

	info, err := os.Stat(svc.Artifact())
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100, "artifact should be executable")

	data, err := os.ReadFile(svc.Artifact())
	require.NoError(t, err)
	assert.Contains(t, string(data), "exec /usr/local/bin/observr watch --path /watched/Media --name media")
}

func TestDefineDuplicateName(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Define("/first/data", "", false)
	require.NoError(t, err)

	_, err = m.Define("/second/data", "", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrAlreadyExists)
}

func TestDiscoverRestoresServices(t *testing.T) {
	first := newTestManager(t)
	_, err := first.Define("/watched/media", "", false)
	require.NoError(t, err)
	_, err = first.Define("/watched/backups", "", true)
	require.NoError(t, err)

	second, err := NewManager(first.Dir(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	found, err := second.Discover()
	require.NoError(t, err)
	require.Len(t, found, 2)

	media, err := second.Get("media")
	require.NoError(t, err)
	assert.False(t, media.RunOnStartup)
	assert.Equal(t, "/watched/media", media.Path)

	backups, err := second.Get("backups")
	require.NoError(t, err)
	assert.True(t, backups.RunOnStartup)
	assert.Equal(t, "/watched/backups", backups.Path)
}

func TestDiscoverEmptyDirectory(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Discover()
	assert.ErrorIs(t, err, ErrNoServices)
}

func TestDiscoverSkipsRegisteredNames(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Define("/watched/media", "", false)
	require.NoError(t, err)

	found, err := m.Discover()
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Len(t, m.All(), 1)
}

func TestLaunchRunsDetachedCommand(t *testing.T) {
	m := newTestManager(t)
	rec := &commandRecorder{}
	m.runner = rec.run

	svc, err := m.Define("/watched/media", "", false)
	require.NoError(t, err)

	require.NoError(t, m.Launch("media", ""))
	require.Len(t, rec.commands, 1)
	assert.Equal(t, svc.LaunchCommand(""), rec.commands[0])
	assert.Contains(t, rec.commands[0], "nohup ")
	assert.Contains(t, rec.commands[0], "2>&1 &")
}

func TestLaunchWritesAutostartEntries(t *testing.T) {
	m := newTestManager(t)
	rec := &commandRecorder{}
	m.runner = rec.run

	svc, err := m.Define("/watched/backups", "", true)
	require.NoError(t, err)
	require.NoError(t, m.Launch("backups", ""))

	local, err := autostart.Parse(svc.AutostartFile())
	require.NoError(t, err)
	assert.Equal(t, svc.LaunchCommand(""), local.Exec)
	assert.Equal(t, "backups", local.Name)

	installed := filepath.Join(m.autostartDir, autostart.FileName("backups"))
	system, err := autostart.Parse(installed)
	require.NoError(t, err)
	assert.Equal(t, local, system)
}

func TestLaunchPlainServiceSkipsAutostart(t *testing.T) {
	m := newTestManager(t)
	rec := &commandRecorder{}
	m.runner = rec.run

	svc, err := m.Define("/watched/media", "", false)
	require.NoError(t, err)
	require.NoError(t, m.Launch("media", ""))

	_, err = os.Stat(svc.AutostartFile())
	assert.True(t, os.IsNotExist(err))
}

func TestLaunchOutputOverride(t *testing.T) {
	m := newTestManager(t)
	rec := &commandRecorder{}
	m.runner = rec.run

	_, err := m.Define("/watched/media", "", false)
	require.NoError(t, err)
	require.NoError(t, m.Launch("media", "/var/log/media.log"))
	assert.Contains(t, rec.commands[0], ">> /var/log/media.log")
}

func TestLaunchUnknownService(t *testing.T) {
	m := newTestManager(t)

	err := m.Launch("ghost", "")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestLaunchRunnerFailure(t *testing.T) {
	m := newTestManager(t)
	rec := &commandRecorder{err: fmt.Errorf("sh exploded")}
	m.runner = rec.run

	_, err := m.Define("/watched/media", "", false)
	require.NoError(t, err)

	err = m.Launch("media", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to launch service")
}

func TestPIDSignalAndStop(t *testing.T) {
	m := newTestManager(t)
	svc, err := m.Define("/watched/sleepy", "", false)
	require.NoError(t, err)

	// Stand-in for a launched service: a shell whose command line carries
	// the artifact path. The trailing echo keeps the shell from exec'ing
	// the sleep and losing the token from its command line.
	cmd := exec.Command("/bin/sh", "-c", fmt.Sprintf("sleep 5; echo %s", svc.Artifact()))
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	var pid int32
	require.Eventually(t, func() bool {
		pid, err = m.PID("sleepy")
		return err == nil
	}, 2*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(cmd.Process.Pid), pid)

	require.NoError(t, m.Stop("sleepy"))
	waitErr := cmd.Wait()
	require.Error(t, waitErr)
	assert.Contains(t, waitErr.Error(), "killed")

	_, err = m.PID("sleepy")
	assert.ErrorIs(t, err, ErrPIDNotFound)
}

func TestPIDWithoutProcess(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Define("/watched/idle", "", false)
	require.NoError(t, err)

	_, err = m.PID("idle")
	assert.ErrorIs(t, err, ErrPIDNotFound)

	err = m.Signal("idle", syscall.SIGTERM)
	assert.ErrorIs(t, err, ErrPIDNotFound)
}

func TestRemoveCleansFiles(t *testing.T) {
	m := newTestManager(t)
	rec := &commandRecorder{}
	m.runner = rec.run

	svc, err := m.Define("/watched/backups", "", true)
	require.NoError(t, err)
	require.NoError(t, m.Launch("backups", ""))
	require.NoError(t, os.WriteFile(svc.Output(), []byte("log line\n"), 0o644))

	require.NoError(t, m.Remove("backups"))

	for _, path := range []string{
		svc.Artifact(),
		svc.Output(),
		svc.AutostartFile(),
		filepath.Join(m.autostartDir, autostart.FileName("backups")),
	} {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "expected %s to be removed", path)
	}

	_, err = m.Get("backups")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestDefineArtifactForStartupService(t *testing.T) {
	m := newTestManager(t)

	svc, err := m.Define("/watched/backups", "", true)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(svc.Artifact(), "backups__true.svc"))
	_, err = os.Stat(svc.Artifact())
	require.NoError(t, err)
}
