package publisher

import (
	"context"

	"go.uber.org/zap"

	"chanbus/internal/bus"
)

// AuditPublisher records every successfully published event with a bus.Auditor.
// Audit failures are logged and never fail the publish.
type AuditPublisher struct {
	publisher bus.Publisher
	auditor   bus.Auditor
	logger    *zap.Logger
}

// NewAuditPublisher creates a publisher that audits after publishing
func NewAuditPublisher(publisher bus.Publisher, auditor bus.Auditor, logger *zap.Logger) bus.Publisher {
	return &AuditPublisher{
		publisher: publisher,
		auditor:   auditor,
		logger:    logger.Named("audit"),
	}
}

// Publish implements bus.Publisher.Publish and records the audit entry
func (p *AuditPublisher) Publish(ctx context.Context, evt bus.Event) error {
	if err := p.publisher.Publish(ctx, evt); err != nil {
		return err
	}

	if err := p.auditor.Record(ctx, evt); err != nil {
		p.logger.Warn("failed to record audit entry",
			zap.String("kind", evt.Kind().String()),
			zap.String("event_id", evt.ID()),
			zap.Error(err),
		)
	}

	return nil
}
