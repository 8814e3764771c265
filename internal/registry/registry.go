package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAlreadyExists is returned when an append would reuse a registered name.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is returned when no entry is registered under a name.
	ErrNotFound = errors.New("not found")
)

// Registry is an insertion-ordered collection of items addressed by a unique
// name. Append refuses duplicate names without touching existing entries, and
// All returns items in the order they were appended. Safe for concurrent use.
type Registry[T any] struct {
	mu    sync.RWMutex
	keyOf func(T) string
	order []string
	items map[string]T
}

// New builds an empty registry. keyOf extracts the registration name from an
// item and must be stable for the item's lifetime.
func New[T any](keyOf func(T) string) *Registry[T] {
	return &Registry[T]{keyOf: keyOf, items: make(map[string]T)}
}

// Append registers item under its name. The registry is left unchanged when
// the name is already taken.
func (r *Registry[T]) Append(item T) error {
	name := r.keyOf(item)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrAlreadyExists)
	}
	r.items[name] = item
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the item registered under name.
func (r *Registry[T]) Lookup(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return item, nil
}

// Contains reports whether name is registered.
func (r *Registry[T]) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[name]
	return ok
}

// All returns the registered items in insertion order.
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.items[name])
	}
	return out
}

// Names returns the registered names in insertion order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of registered items.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Remove drops the entry registered under name. Order of the remaining
// entries is preserved.
func (r *Registry[T]) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	delete(r.items, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
