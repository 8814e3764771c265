package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Level names accepted in configuration.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the slog output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// SlogConfig describes the structured logger for the application itself.
type SlogConfig struct {
	Level      Level  `mapstructure:"level" json:"level"`
	Format     Format `mapstructure:"format" json:"format"`
	Color      bool   `mapstructure:"color" json:"color"`
	TimeStamps bool   `mapstructure:"timestamps" json:"timestamps"`
	Source     bool   `mapstructure:"source" json:"source"`
}

// FileConfig describes rotating file destinations for worker output.
// If StdoutPath/StderrPath are empty, and Dir is set, files will be
// Dir/<name>.stdout.log and Dir/<name>.stderr.log
// Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Dir        string `mapstructure:"dir" json:"dir"`
	StdoutPath string `mapstructure:"stdout_path" json:"stdout_path"`
	StderrPath string `mapstructure:"stderr_path" json:"stderr_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// Config combines structured logging and worker file logging.
type Config struct {
	Slog SlogConfig `mapstructure:"slog" json:"slog"`
	File FileConfig `mapstructure:"file" json:"file"`
}

// NewSlogger builds the application logger from the Slog section.
func (c Config) NewSlogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     c.Slog.Level.slogLevel(),
		AddSource: c.Slog.Source,
	}
	if !c.Slog.TimeStamps {
		opts.ReplaceAttr = dropTime
	}
	var h slog.Handler
	switch {
	case c.Slog.Format == FormatJSON:
		h = slog.NewJSONHandler(os.Stdout, opts)
	case c.Slog.Color:
		h = NewColorTextHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}

// NewObserverLogger builds a rotating file logger for a single named worker.
// It returns nil when the File section configures no destination.
func (c Config) NewObserverLogger(name string) *slog.Logger {
	out, _, err := c.ProcessWriters(name)
	if err != nil || out == nil {
		return nil
	}
	opts := &slog.HandlerOptions{Level: c.Slog.Level.slogLevel()}
	return slog.New(slog.NewTextHandler(out, opts))
}

// ProcessWriters returns io.WriteClosers capturing stdout and stderr of the
// named worker process.
func (c Config) ProcessWriters(name string) (io.WriteCloser, io.WriteCloser, error) {
	f := c.File
	stdout := f.StdoutPath
	stderr := f.StderrPath
	if stdout == "" && f.Dir != "" {
		stdout = filepath.Join(f.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && f.Dir != "" {
		stderr = filepath.Join(f.Dir, fmt.Sprintf("%s.stderr.log", name))
	}
	var outW io.WriteCloser
	var errW io.WriteCloser
	if stdout != "" {
		outW = &lj.Logger{
			Filename:   stdout,
			MaxSize:    valOr(f.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(f.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(f.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   f.Compress,
		}
	}
	if stderr != "" {
		errW = &lj.Logger{
			Filename:   stderr,
			MaxSize:    valOr(f.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(f.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(f.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   f.Compress,
		}
	}
	return outW, errW, nil
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
