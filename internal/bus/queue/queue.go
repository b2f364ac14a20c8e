// Package queue implements the typed channel registry: one unbounded, multi-producer
// multi-consumer FIFO queue per event kind, created lazily and exactly once.
package queue

import (
	"context"
	"iter"
	"sync"

	"chanbus/internal/bus"
)

// Queue is an unbounded FIFO of events of a single kind. It is safe for concurrent
// use by any number of writers and readers. Enqueue never blocks on capacity.
type Queue struct {
	kind bus.Kind

	mu     sync.Mutex
	items  []bus.Event
	closed bool
	// ready is closed to wake readers waiting on an empty queue; nil when nobody waits.
	ready chan struct{}
}

// New creates an empty open queue for kind.
func New(kind bus.Kind) *Queue {
	return &Queue{kind: kind}
}

// Kind returns the kind of events held by the queue.
func (q *Queue) Kind() bus.Kind {
	return q.kind
}

// Enqueue appends evt to the queue. It fails with ctx.Err() if ctx is already done
// and with bus.ErrQueueClosed after Close.
func (q *Queue) Enqueue(ctx context.Context, evt bus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return bus.ErrQueueClosed
	}

	q.items = append(q.items, evt)
	q.wake()

	return nil
}

// Dequeue removes and returns the oldest event, blocking while the queue is empty.
// It returns bus.ErrQueueClosed once the queue is closed and drained, or ctx.Err()
// when ctx is done first. A done ctx never consumes an event.
func (q *Queue) Dequeue(ctx context.Context) (bus.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			evt := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()

			return evt, nil
		}

		if q.closed {
			q.mu.Unlock()
			return nil, bus.ErrQueueClosed
		}

		if q.ready == nil {
			q.ready = make(chan struct{})
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ready:
		}
	}
}

// Events returns the lazy sequence of dequeued events. The sequence ends when the
// queue is closed and drained or ctx is done. It is not restartable: events yielded
// once are gone from the queue.
func (q *Queue) Events(ctx context.Context) iter.Seq[bus.Event] {
	return func(yield func(bus.Event) bool) {
		for {
			evt, err := q.Dequeue(ctx)
			if err != nil {
				return
			}

			if !yield(evt) {
				return
			}
		}
	}
}

// Len returns the number of events waiting in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Close stops the queue from accepting events. Readers drain the remaining events and
// then observe bus.ErrQueueClosed. Closing twice is a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	q.wake()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// wake must be called with mu held.
func (q *Queue) wake() {
	if q.ready != nil {
		close(q.ready)
		q.ready = nil
	}
}
