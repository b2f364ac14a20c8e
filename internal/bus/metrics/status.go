package metrics

import (
	"context"
	"errors"

	"chanbus/internal/bus"
)

// Outcome labels shared by publish and handler metrics.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusClosed   = "closed"
	StatusCanceled = "canceled"
)

// Status classifies an operation error into an outcome label.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, bus.ErrQueueClosed):
		return StatusClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusError
	}
}
