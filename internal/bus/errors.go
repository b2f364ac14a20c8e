package bus

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned when an event is enqueued after shutdown.
	ErrQueueClosed = errors.New("bus: queue is closed")

	// ErrHandlerTypeMismatch is returned by adapted handlers that receive an event
	// of an unexpected type.
	ErrHandlerTypeMismatch = errors.New("bus: handler type mismatch")

	// ErrHandlerPanic marks a handler invocation that panicked.
	ErrHandlerPanic = errors.New("bus: handler panicked")

	// ErrDispatcherStopped is returned when a dispatcher is run after it has stopped.
	ErrDispatcherStopped = errors.New("bus: dispatcher stopped")

	// ErrAuditRecordNotFound is returned when no audit entry exists for an event.
	ErrAuditRecordNotFound = errors.New("bus: audit record not found")
)

// HandlerError describes a failed subscriber invocation.
type HandlerError struct {
	Kind    Kind
	EventID string
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed for %s event %s: %v", e.Handler, e.Kind, e.EventID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
