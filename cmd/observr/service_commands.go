package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/loykin/observr/internal/service"
)

// serviceManager opens the service directory named by --dir or the config.
func (c command) serviceManager(dirFlag string) (*service.Manager, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := cfg.LogConfig().NewSlogger()
	slog.SetDefault(logger)

	dir := dirFlag
	if dir == "" {
		dir = cfg.ServiceDirectory()
	}
	return service.NewManager(dir, logger)
}

// openServices additionally registers the artifacts already on disk, so
// commands operate on everything previously defined.
func (c command) openServices(dirFlag string) (*service.Manager, error) {
	m, err := c.serviceManager(dirFlag)
	if err != nil {
		return nil, err
	}
	if _, err := m.Discover(); err != nil && !errors.Is(err, service.ErrNoServices) {
		return nil, err
	}
	return m, nil
}

// ServiceDefine writes a new service artifact and prints it.
func (c command) ServiceDefine(f ServiceDefineFlags) error {
	if f.Path == "" {
		return fmt.Errorf("define requires --path")
	}
	m, err := c.openServices(f.Dir)
	if err != nil {
		return err
	}
	svc, err := m.Define(f.Path, f.Name, f.RunOnStartup)
	if err != nil {
		return err
	}
	printJSON(svc)
	return nil
}

// ServiceLaunch runs a defined service detached from this process.
func (c command) ServiceLaunch(f ServiceLaunchFlags) error {
	if f.Name == "" {
		return fmt.Errorf("launch requires --name")
	}
	m, err := c.openServices(f.Dir)
	if err != nil {
		return err
	}
	return m.Launch(f.Name, f.Output)
}

// ServiceStop kills the running service process.
func (c command) ServiceStop(f ServiceStopFlags) error {
	if f.Name == "" {
		return fmt.Errorf("stop requires --name")
	}
	m, err := c.openServices(f.Dir)
	if err != nil {
		return err
	}
	return m.Stop(f.Name)
}

// ServiceSignal delivers an arbitrary signal to the service process.
func (c command) ServiceSignal(f ServiceSignalFlags) error {
	if f.Name == "" {
		return fmt.Errorf("signal requires --name")
	}
	sig, err := service.ParseSignal(f.Signal)
	if err != nil {
		return err
	}
	m, err := c.openServices(f.Dir)
	if err != nil {
		return err
	}
	return m.Signal(f.Name, sig)
}

type pidInfo struct {
	Name string `json:"name"`
	PID  int32  `json:"pid"`
}

// ServicePID prints the pid of the running service process.
func (c command) ServicePID(f ServicePIDFlags) error {
	if f.Name == "" {
		return fmt.Errorf("pid requires --name")
	}
	m, err := c.openServices(f.Dir)
	if err != nil {
		return err
	}
	pid, err := m.PID(f.Name)
	if err != nil {
		return err
	}
	printJSON(pidInfo{Name: f.Name, PID: pid})
	return nil
}

// ServiceList prints every defined service.
func (c command) ServiceList(f ServiceListFlags) error {
	m, err := c.openServices(f.Dir)
	if err != nil {
		return err
	}
	printJSON(m.All())
	return nil
}

// ServiceRemove deletes the service's files. With --stop the running
// process is killed first; a service that is not running is fine.
func (c command) ServiceRemove(f ServiceRemoveFlags) error {
	if f.Name == "" {
		return fmt.Errorf("remove requires --name")
	}
	m, err := c.openServices(f.Dir)
	if err != nil {
		return err
	}
	if f.Stop {
		if err := m.Stop(f.Name); err != nil && !errors.Is(err, service.ErrPIDNotFound) {
			return err
		}
	}
	return m.Remove(f.Name)
}

// ServiceDiscover registers the artifacts found on disk and prints them.
func (c command) ServiceDiscover(f ServiceDiscoverFlags) error {
	m, err := c.serviceManager(f.Dir)
	if err != nil {
		return err
	}
	found, err := m.Discover()
	if err != nil {
		return err
	}
	printJSON(found)
	return nil
}
