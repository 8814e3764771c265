// Package config loads observr's TOML configuration.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/loykin/observr/internal/history"
	"github.com/loykin/observr/internal/history/factory"
	"github.com/loykin/observr/internal/logger"
	"github.com/loykin/observr/internal/metrics"
	"github.com/loykin/observr/internal/service"
)

// Defaults for files the watcher writes when the configuration leaves
// them unset. Changelog and position records land in the log directory.
const (
	DefaultLogDir        = "logs"
	DefaultChangelogFile = "changes.json"
	DefaultPositionsFile = "position_data.json"
	DefaultListen        = ":8601"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	LogDir     string                  `toml:"log_dir" mapstructure:"log_dir"`
	Changelog  string                  `toml:"changelog" mapstructure:"changelog"`
	Positions  string                  `toml:"positions" mapstructure:"positions"`
	ServiceDir string                  `toml:"service_dir" mapstructure:"service_dir"`
	Log        *logger.Config          `toml:"log" mapstructure:"log"`
	Observers  []ObserverConfig        `toml:"observers" mapstructure:"observers"`
	History    []SinkConfig            `toml:"history" mapstructure:"history"`
	Server     *ServerConfig           `toml:"server" mapstructure:"server"`
	Resources  *metrics.ResourceConfig `toml:"resources" mapstructure:"resources"`
}

// ObserverConfig declares one watched path. Name is optional; an empty
// name is derived from the path when the observer is created.
type ObserverConfig struct {
	Path string `toml:"path" mapstructure:"path"`
	Name string `toml:"name" mapstructure:"name"`
}

// SinkConfig declares one history sink by DSN.
type SinkConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Load parses the TOML file at path and validates required fields.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	for i, oc := range fc.Observers {
		if oc.Path == "" {
			return nil, fmt.Errorf("observer %d requires path", i)
		}
	}
	for i, sc := range fc.History {
		if sc.DSN == "" {
			return nil, fmt.Errorf("history sink %d requires dsn", i)
		}
	}
	return &fc, nil
}

// ChangelogFile resolves where change records are written.
func (fc *FileConfig) ChangelogFile() string {
	if fc.Changelog != "" {
		return fc.Changelog
	}
	return filepath.Join(fc.logDir(), DefaultChangelogFile)
}

// PositionFile resolves where name position records are written.
func (fc *FileConfig) PositionFile() string {
	if fc.Positions != "" {
		return fc.Positions
	}
	return filepath.Join(fc.logDir(), DefaultPositionsFile)
}

// ServiceDirectory resolves the service artifact directory.
func (fc *FileConfig) ServiceDirectory() string {
	if fc.ServiceDir != "" {
		return fc.ServiceDir
	}
	return service.DefaultDir
}

// ListenAddr resolves the HTTP listen address.
func (fc *FileConfig) ListenAddr() string {
	if fc.Server != nil && fc.Server.Listen != "" {
		return fc.Server.Listen
	}
	return DefaultListen
}

// LogConfig returns the logging section, zeroed when absent so callers
// always get a usable value.
func (fc *FileConfig) LogConfig() logger.Config {
	if fc.Log != nil {
		return *fc.Log
	}
	return logger.Config{}
}

// ResourceConfig returns the resource sampling section, disabled when absent.
func (fc *FileConfig) ResourceConfig() metrics.ResourceConfig {
	if fc.Resources != nil {
		return *fc.Resources
	}
	return metrics.ResourceConfig{}
}

// BuildSinks constructs one history sink per configured DSN.
func (fc *FileConfig) BuildSinks() ([]history.Sink, error) {
	sinks := make([]history.Sink, 0, len(fc.History))
	for _, sc := range fc.History {
		s, err := factory.NewSinkFromDSN(sc.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to build history sink from %q: %w", sc.DSN, err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func (fc *FileConfig) logDir() string {
	if fc.LogDir != "" {
		return fc.LogDir
	}
	return DefaultLogDir
}
