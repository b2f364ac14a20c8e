package publisher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"chanbus/internal/bus"
	"chanbus/internal/validator"
)

// Publisher enqueues events into the message queue under their kind.
type Publisher struct {
	queue  bus.MessageQueue
	logger *zap.Logger
}

var _ bus.Publisher = (*Publisher)(nil)

func New(queue bus.MessageQueue, logger *zap.Logger) (*Publisher, error) {
	p := Publisher{
		queue:  queue,
		logger: logger,
	}

	if err := validator.Validate("publisher", p.queue, p.logger); err != nil {
		return nil, fmt.Errorf("failed to validate publisher deps: %w", err)
	}

	p.logger = p.logger.Named("publisher")

	return &p, nil
}

// Publish implements bus.Publisher.Publish.
func (p *Publisher) Publish(ctx context.Context, evt bus.Event) error {
	p.logger.Info("publishing event",
		zap.String("kind", evt.Kind().String()),
		zap.String("event_id", evt.ID()),
	)

	if err := p.queue.Enqueue(ctx, evt); err != nil {
		return fmt.Errorf("failed to enqueue %s event %s: %w", evt.Kind(), evt.ID(), err)
	}

	return nil
}
