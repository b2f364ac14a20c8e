package bus

import "context"

// Publisher makes events visible to the dispatch loop of their kind.
type Publisher interface {
	// Publish enqueues the event. The only error a producer is expected to handle
	// is ErrQueueClosed during shutdown.
	Publish(ctx context.Context, evt Event) error
}
