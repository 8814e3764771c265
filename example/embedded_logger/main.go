package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/observr"
	"github.com/loykin/observr/internal/event"
	"github.com/loykin/observr/internal/logger"
)

// embedded_logger: demonstrate per-observer log output using observr's logger integration.
// It watches a short-lived directory, then shows where the rotating logs are stored.
func main() {
	// Determine log directory: use OBSERVR_LOG_DIR if set, otherwise a temp directory.
	logDir := os.Getenv("OBSERVR_LOG_DIR")
	if logDir == "" {
		logDir = filepath.Join(os.TempDir(), fmt.Sprintf("observr-logs-%d", time.Now().UnixNano()))
	}
	_ = os.MkdirAll(logDir, 0o750)

	// Configure logging: directory-based default file names, so files will be
	// <Dir>/<name>.stdout.log rotated with lumberjack.
	logCfg := logger.Config{File: logger.FileConfig{Dir: logDir}}
	obsLog := logCfg.NewObserverLogger("embedded-logger-demo")

	watched, err := os.MkdirTemp("", "observr-watched-*")
	if err != nil {
		panic(err)
	}
	defer func() { _ = os.RemoveAll(watched) }()

	mgr := observr.New(filepath.Join(logDir, "changes.json"), filepath.Join(logDir, "positions.json"))
	if _, err := mgr.Create(watched, "embedded-logger-demo"); err != nil {
		panic(err)
	}

	// Produce a couple of events while the observer runs
	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(watched, "hello.txt"), []byte("hello"), 0o644)
		time.Sleep(200 * time.Millisecond)
		_ = os.Remove(filepath.Join(watched, "hello.txt"))
	}()
	if err := mgr.Start(context.Background(), "embedded-logger-demo", time.Second); err != nil {
		panic(err)
	}

	// Write the recorded changes through the observer's file logger
	for _, t := range []string{string(event.Created), string(event.Deleted)} {
		for _, p := range mgr.Changes().Paths(t) {
			obsLog.Info("recorded", "type", t, "path", p)
		}
	}

	fmt.Println("Embedded logger example")
	fmt.Println("  Log directory:", logDir)
	fmt.Println("  Observer log:", filepath.Join(logDir, "embedded-logger-demo.stdout.log"))
	fmt.Println("Tip: set OBSERVR_LOG_DIR to choose a custom log directory.")
}
