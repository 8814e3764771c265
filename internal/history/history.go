package history

import (
	"context"
	"time"
)

// Event is a filesystem change record exported to external systems.
type Event struct {
	Observer   string    `json:"observer"`
	Type       string    `json:"type"`
	Path       string    `json:"path"`
	IsDir      bool      `json:"is_dir"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink is a destination for change events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
