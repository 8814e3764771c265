package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loykin/observr/internal/changelog"
	"github.com/loykin/observr/internal/config"
	"github.com/loykin/observr/internal/event"
	"github.com/loykin/observr/internal/manager"
	"github.com/loykin/observr/internal/namegen"
)

type command struct {
	global *GlobalFlags
}

// loadConfig reads the file named by --config. Without the flag an empty
// config is returned whose accessors yield the defaults.
func (c command) loadConfig() (*config.FileConfig, error) {
	if c.global.ConfigPath == "" {
		return &config.FileConfig{}, nil
	}
	return config.Load(c.global.ConfigPath)
}

// buildManager wires the change log, history sinks and name generator
// into an observer manager.
func (c command) buildManager(cfg *config.FileConfig, logger *slog.Logger) (*manager.Manager, error) {
	changes := changelog.New(cfg.ChangelogFile())
	handler := event.NewLogHandler(logger, changes)
	sinks, err := cfg.BuildSinks()
	if err != nil {
		return nil, err
	}
	handler.SetSinks(sinks...)

	m := manager.New(handler, namegen.New(cfg.PositionFile()), logger)
	m.SetSpawner(manager.SelfSpawn(cfg.LogConfig()))
	return m, nil
}

// Watch runs one observer in the foreground until interrupted, the
// duration elapses, or the observer is stopped.
func (c command) Watch(f WatchFlags) error {
	if f.Path == "" {
		return fmt.Errorf("watch requires --path")
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.LogConfig().NewSlogger()
	slog.SetDefault(logger)

	m, err := c.buildManager(cfg, logger)
	if err != nil {
		return err
	}
	o, err := m.Create(f.Path, f.Name)
	if err != nil {
		return err
	}
	return m.Start(context.Background(), o.Name(), f.Duration)
}

// WatchAll creates observers for the config entries and every --path,
// then runs the whole batch with the chosen strategy.
func (c command) WatchAll(f WatchAllFlags) error {
	method, err := manager.ParseStartMethod(f.Strategy)
	if err != nil {
		return err
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.LogConfig().NewSlogger()
	slog.SetDefault(logger)

	m, err := c.buildManager(cfg, logger)
	if err != nil {
		return err
	}

	var names []string
	for _, oc := range cfg.Observers {
		o, err := m.Create(oc.Path, oc.Name)
		if err != nil {
			return err
		}
		names = append(names, o.Name())
	}
	if len(f.Paths) > 0 {
		created, err := m.CreateAll(f.Paths)
		if err != nil {
			return err
		}
		for _, o := range created {
			names = append(names, o.Name())
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("watch-all requires --path flags or configured observers")
	}

	return m.StartAll(context.Background(), names, method, f.Duration)
}

// Changes prints the change log, or one selected view of it.
func (c command) Changes(f ChangesFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	file := f.File
	if file == "" {
		file = cfg.ChangelogFile()
	}

	selCount := 0
	for _, s := range []string{f.Type, f.Observer, f.Search, f.Verify} {
		if s != "" {
			selCount++
		}
	}
	if selCount > 1 {
		return fmt.Errorf("only one of --type, --observer, --search, --verify may be given")
	}

	data := changelog.New(file).Snapshot()
	switch {
	case f.Type != "":
		if !validEventType(f.Type) {
			return fmt.Errorf("unknown event type %q", f.Type)
		}
		printJSON(data.Paths(f.Type))
	case f.Observer != "":
		printJSON(data.ForObserver(f.Observer))
	case f.Search != "":
		printJSON(data.Search(f.Search))
	case f.Verify != "":
		positions := namegen.LoadPositions(cfg.PositionFile())
		pos, ok := positions[f.Verify]
		if !ok {
			return fmt.Errorf("no recorded name position for %q", f.Verify)
		}
		printJSON(data.VerifiedPaths(f.Verify, pos))
	default:
		printJSON(data)
	}
	return nil
}
