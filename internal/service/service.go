// Package service manages background watch services: executable artifacts
// on disk that restart observers detached from any controlling session.
package service

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/loykin/observr/internal/autostart"
)

var (
	// ErrNoServices is returned when discovery finds no artifacts.
	ErrNoServices = errors.New("no services found")
	// ErrPIDNotFound is returned when no process matches a service. It is
	// ambiguous between "never launched" and "already exited".
	ErrPIDNotFound = errors.New("service pid not found")
)

const (
	// DefaultDir is the service directory used when none is configured.
	DefaultDir = "__watchservice__"

	artifactExt   = ".svc"
	startupMarker = "__true"
)

// Service describes one background watch service. Name is stored
// lower-cased; every file the service touches derives from it.
type Service struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	RunOnStartup bool   `json:"run_on_startup"`
	Dir          string `json:"dir"`
}

// Artifact returns the service's executable script path. Services that
// run on startup carry the marker suffix in the file name so discovery
// can restore the flag without reading the file.
func (s Service) Artifact() string {
	base := s.Name + artifactExt
	if s.RunOnStartup {
		base = s.Name + startupMarker + artifactExt
	}
	return filepath.Join(s.Dir, base)
}

// Output returns the file collecting the service's combined output.
func (s Service) Output() string {
	return filepath.Join(s.Dir, s.Name+".out")
}

// AutostartFile returns the service-local autostart entry path.
func (s Service) AutostartFile() string {
	return filepath.Join(s.Dir, autostart.FileName(s.Name))
}

// LaunchCommand returns the shell command that starts the service
// detached, appending output to out. An empty out selects the default
// output file.
func (s Service) LaunchCommand(out string) string {
	if out == "" {
		out = s.Output()
	}
	return fmt.Sprintf("nohup %s >> %s 2>&1 &", shellQuote(s.Artifact()), shellQuote(out))
}

// script renders the artifact: a sh script re-executing exe's watch
// command. The artifact path rides the child's argv so the process table
// scan can find the service later.
func (s Service) script(exe string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "# name: %s\n", s.Name)
	fmt.Fprintf(&b, "# path: %s\n", s.Path)
	fmt.Fprintf(&b, "exec %s watch --path %s --name %s --service-file %s\n",
		shellQuote(exe), shellQuote(s.Path), shellQuote(s.Name), shellQuote(s.Artifact()))
	return b.String()
}

// artifactPath extracts the watched path recorded in an artifact script.
func artifactPath(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if rest, ok := strings.CutPrefix(line, "# path: "); ok {
			return rest
		}
	}
	return ""
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>(){}[]*?#~`") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
