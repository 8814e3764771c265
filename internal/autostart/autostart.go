// Package autostart renders freedesktop autostart entries so background
// services relaunch when the user's desktop session starts.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry models a desktop autostart file. Every field is written verbatim,
// so boolean-ish values stay strings the way desktop files expect them.
type Entry struct {
	Encoding   string
	Name       string
	Comment    string
	Icon       string
	Exec       string
	Terminal   string
	Type       string
	Categories string
	// Enabled and Delay map onto the X-GNOME-Autostart keys.
	Enabled string
	Delay   string
}

// New returns an entry for a named service with the stock defaults filled
// in. Only Exec varies between services.
func New(name, execCommand string) Entry {
	return Entry{
		Encoding: "UTF-8",
		Name:     name,
		Comment:  "observr service monitoring filesystem events",
		Icon:     "gnome-info",
		Exec:     execCommand,
		Terminal: "false",
		Type:     "Application",
		Enabled:  "true",
		Delay:    "0",
	}
}

// FileName returns the desktop file name used for a service.
func FileName(name string) string {
	return strings.ToLower(name) + "_autostart.desktop"
}

// SystemDir returns the session autostart directory under the user's home.
func SystemDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "autostart"), nil
}

// pairs returns the entry's keys in the order they are written.
func (e Entry) pairs() [][2]string {
	return [][2]string{
		{"Encoding", e.Encoding},
		{"Name", e.Name},
		{"Comment", e.Comment},
		{"Icon", e.Icon},
		{"Exec", e.Exec},
		{"Terminal", e.Terminal},
		{"Type", e.Type},
		{"Categories", e.Categories},
		{"X-GNOME-Autostart-enabled", e.Enabled},
		{"X-GNOME-Autostart-Delay", e.Delay},
	}
}

// Write renders the entry as a desktop file at path, creating parent
// directories as needed.
func (e Entry) Write(path string) error {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	for _, kv := range e.pairs() {
		fmt.Fprintf(&b, "%s=%s\n", kv[0], kv[1])
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create autostart directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write autostart entry: %w", err)
	}
	return nil
}

// Install writes the entry into the session autostart directory and
// returns the written path.
func (e Entry) Install() (string, error) {
	dir, err := SystemDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(e.Name))
	if err := e.Write(path); err != nil {
		return "", err
	}
	return path, nil
}

// Parse reads a desktop file back into an Entry. Unknown keys are
// ignored; lines without '=' are skipped.
func Parse(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read autostart entry: %w", err)
	}
	var e Entry
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "Encoding":
			e.Encoding = value
		case "Name":
			e.Name = value
		case "Comment":
			e.Comment = value
		case "Icon":
			e.Icon = value
		case "Exec":
			e.Exec = value
		case "Terminal":
			e.Terminal = value
		case "Type":
			e.Type = value
		case "Categories":
			e.Categories = value
		case "X-GNOME-Autostart-enabled":
			e.Enabled = value
		case "X-GNOME-Autostart-Delay":
			e.Delay = value
		}
	}
	return e, nil
}
