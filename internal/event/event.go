package event

import "time"

// Type classifies a filesystem change.
type Type string

const (
	Created  Type = "created"
	Deleted  Type = "deleted"
	Modified Type = "modified"
	Moved    Type = "moved"
	// Closed is part of the change log contract but has no watcher backend
	// counterpart; it only appears when embedders dispatch events directly.
	Closed Type = "closed"
)

// Types returns every event type in classification order.
func Types() []Type {
	return []Type{Created, Deleted, Modified, Moved, Closed}
}

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	switch t {
	case Created, Deleted, Modified, Moved, Closed:
		return true
	}
	return false
}

// Event is a single filesystem change observed on a watched path.
type Event struct {
	Type  Type
	Path  string
	IsDir bool
	At    time.Time
}

// Handler consumes events from observers. A single handler instance is
// shared by every observer of a manager, so implementations must be safe
// for concurrent use.
type Handler interface {
	Dispatch(e Event, observer string) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(e Event, observer string) error

func (f HandlerFunc) Dispatch(e Event, observer string) error { return f(e, observer) }
