package changelog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/loykin/observr/internal/namegen"
)

// Load reads a change log document from file without going through a Log.
func Load(file string) (Data, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read change log: %w", err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode change log: %w", err)
	}
	return data, nil
}

// Paths returns every path recorded under eventType, across all observers.
func (d Data) Paths(eventType string) []string {
	var out []string
	for _, paths := range d[eventType] {
		out = append(out, paths...)
	}
	sort.Strings(out)
	return out
}

// AllPaths returns every recorded path across all event types, deduplicated.
func (d Data) AllPaths() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, byObserver := range d {
		for _, paths := range byObserver {
			for _, p := range paths {
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Search returns recorded paths containing query, compared case-insensitively.
func (d Data) Search(query string) []string {
	q := strings.ToLower(query)
	var out []string
	for _, p := range d.AllPaths() {
		if strings.Contains(strings.ToLower(p), q) {
			out = append(out, p)
		}
	}
	return out
}

// ForObserver returns the paths recorded under observer, per event type.
// Event types with no records for the observer are omitted.
func (d Data) ForObserver(observer string) map[string][]string {
	out := make(map[string][]string)
	for eventType, byObserver := range d {
		if paths, ok := byObserver[observer]; ok && len(paths) > 0 {
			out[eventType] = append([]string(nil), paths...)
		}
	}
	return out
}

// VerifiedPaths returns recorded paths that mention name and whose segment at
// the recorded position is exactly name. A bare substring match can hit
// unrelated paths; checking the segment the name was generated from removes
// those.
func (d Data) VerifiedPaths(name string, position int) []string {
	var out []string
	for _, p := range d.Search(name) {
		if seg, ok := namegen.Segment(p, position); ok && seg == name {
			out = append(out, p)
		}
	}
	return out
}
