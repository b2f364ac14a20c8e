package queue

import (
	"context"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"chanbus/internal/bus"
)

// Registry maps each event kind to its queue. Queues are created on first reference
// and at most one queue ever exists per kind.
type Registry struct {
	// queues holds an immutable snapshot of the kind -> queue mapping. Lookups of known
	// kinds read it without locking; creation replaces it under mu.
	queues atomic.Pointer[map[bus.Kind]*Queue]

	mu       sync.Mutex
	closed   bool
	onCreate []func(*Queue)
}

var _ bus.MessageQueue = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithOnCreate registers a hook that runs exactly once for every queue the registry
// creates, before the queue becomes visible to other callers.
func WithOnCreate(fn func(*Queue)) Option {
	return func(r *Registry) {
		r.onCreate = append(r.onCreate, fn)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	empty := make(map[bus.Kind]*Queue)
	r.queues.Store(&empty)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Queue returns the queue for kind, creating it on first use.
func (r *Registry) Queue(kind bus.Kind) *Queue {
	if q, ok := (*r.queues.Load())[kind]; ok {
		return q
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another caller may have created it while we waited for the lock
	current := *r.queues.Load()
	if q, ok := current[kind]; ok {
		return q
	}

	q := New(kind)
	if r.closed {
		q.Close()
	}

	for _, fn := range r.onCreate {
		fn(q)
	}

	next := make(map[bus.Kind]*Queue, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[kind] = q
	r.queues.Store(&next)

	return q
}

// Enqueue implements bus.MessageQueue.Enqueue.
func (r *Registry) Enqueue(ctx context.Context, evt bus.Event) error {
	return r.Queue(evt.Kind()).Enqueue(ctx, evt)
}

// Dequeue implements bus.MessageQueue.Dequeue.
func (r *Registry) Dequeue(ctx context.Context, kind bus.Kind) iter.Seq[bus.Event] {
	return r.Queue(kind).Events(ctx)
}

// Kinds returns the kinds that currently have a queue, sorted.
func (r *Registry) Kinds() []bus.Kind {
	current := *r.queues.Load()

	kinds := make([]bus.Kind, 0, len(current))
	for k := range current {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	return kinds
}

// Close closes every queue. Queues created afterwards start closed, so publishing
// any kind fails with bus.ErrQueueClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for _, q := range *r.queues.Load() {
		q.Close()
	}
}
