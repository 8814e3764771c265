package namegen

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/loykin/observr/internal/registry"
)

// Generator derives observer names from watched paths and records, for each
// assigned name, the negative index of the path segment the name was taken
// from. Position -1 is the final segment, -2 the one before it, and so on.
// The records let later queries map a name back to the path it watches.
type Generator struct {
	mu   sync.Mutex
	file string
}

// New returns a Generator persisting position records to positionFile.
func New(positionFile string) *Generator {
	return &Generator{file: positionFile}
}

// File returns the position record path.
func (g *Generator) File() string { return g.file }

// Generate derives a name from a single path: the last segment after
// trimming separators.
func Generate(path string) string {
	segs := segments(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// GenerateAll derives one name per path, in input order. When a derived name
// collides with one assigned earlier in the batch, the later path falls back
// to the next segment toward the root until the name is unique; the earlier
// path keeps the short name. Each assignment is recorded at the segment
// position it was taken from, starting at -1 for every path. The combined
// records are persisted before returning.
func (g *Generator) GenerateAll(paths []string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(paths))
	positions := make(map[string]int, len(paths))
	taken := make(map[string]struct{}, len(paths))

	for _, path := range paths {
		segs := segments(path)
		if len(segs) == 0 {
			return nil, fmt.Errorf("cannot derive a name from %q", path)
		}
		idx := len(segs) - 1
		pos := -1
		name := segs[idx]
		for {
			if _, clash := taken[name]; !clash {
				break
			}
			idx--
			pos--
			if idx < 0 {
				return nil, fmt.Errorf("cannot disambiguate %q: %w", path, registry.ErrAlreadyExists)
			}
			name = segs[idx]
		}
		taken[name] = struct{}{}
		names = append(names, name)
		positions[name] = pos
	}

	if err := g.save(positions); err != nil {
		return nil, err
	}
	return names, nil
}

// Positions returns the persisted position records. A missing or unreadable
// record file yields an empty map.
func (g *Generator) Positions() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return loadPositions(g.file)
}

// LoadPositions reads position records from file. Missing or malformed data
// is treated as absent.
func LoadPositions(file string) map[string]int {
	return loadPositions(file)
}

// save merges positions into the existing records and writes them back.
func (g *Generator) save(positions map[string]int) error {
	merged := loadPositions(g.file)
	for name, pos := range positions {
		merged[name] = pos
	}
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode positions: %w", err)
	}
	if dir := filepath.Dir(g.file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create position directory: %w", err)
		}
	}
	if err := os.WriteFile(g.file, data, 0o644); err != nil {
		return fmt.Errorf("failed to save positions: %w", err)
	}
	return nil
}

func loadPositions(file string) map[string]int {
	out := make(map[string]int)
	data, err := os.ReadFile(file)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return make(map[string]int)
	}
	return out
}

// Segment returns the path segment recorded at position (counted from the
// end, -1 being the last). It reports false when the position falls outside
// the path.
func Segment(path string, position int) (string, bool) {
	segs := segments(path)
	idx := len(segs) + position
	if idx < 0 || idx >= len(segs) {
		return "", false
	}
	return segs[idx], true
}

func segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
