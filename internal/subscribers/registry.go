// Package subscribers resolves the handlers interested in each event kind and holds
// the service's subscribers.
package subscribers

import (
	"context"
	"sync"

	"chanbus/internal/bus"
)

// Factory builds a fresh handler instance for a single event.
type Factory func() bus.Handler

// Registry maps event kinds to handler factories. It implements bus.Resolver and
// may be changed while the dispatcher is running.
type Registry struct {
	mu        sync.RWMutex
	factories map[bus.Kind][]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[bus.Kind][]Factory)}
}

// Register adds a factory for kind.
func (r *Registry) Register(kind bus.Kind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[kind] = append(r.factories[kind], factory)
}

// Unregister removes every factory for kind.
func (r *Registry) Unregister(kind bus.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.factories, kind)
}

// Resolve builds one new handler per factory registered for kind.
func (r *Registry) Resolve(_ context.Context, kind bus.Kind) []bus.Handler {
	r.mu.RLock()
	factories := r.factories[kind]
	r.mu.RUnlock()

	if len(factories) == 0 {
		return nil
	}

	handlers := make([]bus.Handler, 0, len(factories))
	for _, factory := range factories {
		handlers = append(handlers, factory())
	}

	return handlers
}

var _ bus.Resolver = (*Registry)(nil)
