package bus

import (
	"context"
	"iter"
)

// MessageQueue owns one FIFO queue per event kind.
type MessageQueue interface {
	// Enqueue appends the event to the queue of its kind.
	// It returns ErrQueueClosed once the queue has been shut down.
	Enqueue(ctx context.Context, evt Event) error

	// Dequeue returns the lazy sequence of events of the given kind. Iteration blocks
	// while the queue is empty and ends when the queue is closed and drained or ctx is done.
	Dequeue(ctx context.Context, kind Kind) iter.Seq[Event]
}
