package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/observr/internal/changelog"
	"github.com/loykin/observr/internal/config"
	"github.com/loykin/observr/internal/event"
	"github.com/loykin/observr/internal/manager"
	"github.com/loykin/observr/internal/metrics"
	"github.com/loykin/observr/internal/namegen"
	"github.com/loykin/observr/internal/server"
	"github.com/loykin/observr/internal/service"
)

// Serve runs the HTTP daemon until SIGINT or SIGTERM. Observers declared
// in the config are created and started; services defined on disk are
// registered so the API can operate on them right away.
func (c command) Serve(f ServeFlags, args []string) error {
	configPath := c.global.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}
	if configPath == "" {
		return fmt.Errorf("config file required for serve. Use --config=observr.toml or provide as argument")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.LogConfig().NewSlogger()
	slog.SetDefault(logger)

	changes := changelog.New(cfg.ChangelogFile())
	handler := event.NewLogHandler(logger, changes)
	sinks, err := cfg.BuildSinks()
	if err != nil {
		return err
	}
	handler.SetSinks(sinks...)

	observers := manager.New(handler, namegen.New(cfg.PositionFile()), logger)
	services, err := service.NewManager(cfg.ServiceDirectory(), logger)
	if err != nil {
		return err
	}
	if _, err := services.Discover(); err != nil && !errors.Is(err, service.ErrNoServices) {
		return err
	}

	for _, oc := range cfg.Observers {
		o, err := observers.Create(oc.Path, oc.Name)
		if err != nil {
			return err
		}
		if err := o.Start(); err != nil {
			logger.Warn("failed to start configured observer", "observer", o.Name(), "error", err)
		}
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	basePath := ""
	if cfg.Server != nil {
		basePath = cfg.Server.BasePath
	}
	router := server.NewRouter(observers, services, changes, basePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var collector *metrics.ResourceCollector
	if rc := cfg.ResourceConfig(); rc.Enabled {
		collector = metrics.NewResourceCollector(rc, servicePIDs(services), logger)
		if err := collector.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("failed to register resource metrics: %w", err)
		}
		if err := collector.Start(ctx); err != nil {
			return err
		}
		router.SetResources(collector)
	}

	listen := f.Listen
	if listen == "" {
		listen = cfg.ListenAddr()
	}
	srv, err := server.NewServer(listen, router)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	fmt.Printf("observr serving on %s%s\n", listen, basePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	if collector != nil {
		collector.Stop()
	}
	if err := observers.StopAll(); err != nil {
		logger.Warn("failed to stop observers", "error", err)
	}
	return srv.Close()
}
