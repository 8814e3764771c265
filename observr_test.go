package observr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestManagerFacadeWatchAndChanges(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "changes.json"), filepath.Join(dir, "positions.json"))

	watched := filepath.Join(dir, "w")
	if err := os.Mkdir(watched, 0o755); err != nil {
		t.Fatal(err)
	}
	o, err := m.Create(watched, "w1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.State() != StateCreated {
		t.Fatalf("unexpected state: %s", o.State())
	}

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background(), "w1", 600*time.Millisecond) }()

	time.Sleep(150 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(watched, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	st, err := m.Status("w1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != StateStopped {
		t.Fatalf("unexpected state after stop: %s", st.State)
	}

	found := false
	for _, p := range m.Changes().Paths("created") {
		if strings.HasSuffix(p, "f.txt") {
			found = true
		}
	}
	if !found {
		t.Fatalf("created record missing: %v", m.Changes())
	}
}

func TestServiceManagerFacade(t *testing.T) {
	sm, err := NewServiceManager(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	svc, err := sm.Define("/watched/media", "", false)
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	if svc.Name != "media" {
		t.Fatalf("unexpected name: %s", svc.Name)
	}
	if len(sm.All()) != 1 {
		t.Fatalf("expected one service")
	}
	if _, err := sm.PID("media"); err == nil {
		t.Fatal("expected pid error for unlaunched service")
	}
	if err := sm.Remove("media"); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestConfigHelpers(t *testing.T) {
	dir := t.TempDir()
	cfg := `
log_dir = "` + dir + `"

[[observers]]
path = "` + dir + `"
name = "root"

[server]
listen = ":9900"
`
	p := filepath.Join(dir, "cfg.toml")
	if err := os.WriteFile(p, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	config, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(config.Observers) != 1 {
		t.Fatalf("LoadConfig observers: len=%d", len(config.Observers))
	}
	if config.ListenAddr() != ":9900" {
		t.Fatalf("LoadConfig listen: %s", config.ListenAddr())
	}
	if config.ChangelogFile() != filepath.Join(dir, "changes.json") {
		t.Fatalf("LoadConfig changelog: %s", config.ChangelogFile())
	}
}

func TestParseHelpers(t *testing.T) {
	if m, err := ParseStartMethod("process"); err != nil || m != MethodProcess {
		t.Fatalf("process: %v %v", m, err)
	}
	if m, err := ParseStartMethod(""); err != nil || m != MethodThread {
		t.Fatalf("empty: %v %v", m, err)
	}
	if _, err := ParseStartMethod("fiber"); err == nil {
		t.Fatal("expected error for unknown method")
	}
	if _, err := ParseSignal("term"); err != nil {
		t.Fatalf("term: %v", err)
	}
	if _, err := ParseSignal("zap"); err == nil {
		t.Fatal("expected error for unknown signal")
	}
}

func TestMetricsHelpers(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("RegisterMetrics: %v", err)
	}
	// Double registration is tolerated.
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("RegisterMetrics twice: %v", err)
	}
	if err := RegisterMetricsDefault(); err != nil {
		t.Fatalf("RegisterMetricsDefault: %v", err)
	}
}

func TestNewHTTPServerRequiresAddr(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "changes.json"), "")
	sm, err := NewServiceManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewHTTPServer("", "/observr", m, sm); err == nil {
		t.Fatal("expected error for empty addr")
	}
}
