package bus

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of an event for routing purposes.
// One kind maps to exactly one queue and one subscriber set.
type Kind string

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// Event represents something that happened in the system.
// Events are immutable once constructed.
type Event interface {
	// ID is unique per event instance.
	ID() string
	// OccurredAt is assigned at construction and never changes.
	OccurredAt() time.Time
	// Kind is the routing discriminator of the event.
	Kind() Kind
}

// Base carries the identity shared by every event. Embed it in concrete event types
// and construct it with NewBase.
type Base struct {
	id         string
	occurredAt time.Time
}

// NewBase returns a Base with a fresh identifier and the current UTC time.
func NewBase() Base {
	return Base{
		id:         uuid.NewString(),
		occurredAt: time.Now().UTC(),
	}
}

// ID implements Event.ID.
func (b Base) ID() string {
	return b.id
}

// OccurredAt implements Event.OccurredAt.
func (b Base) OccurredAt() time.Time {
	return b.occurredAt
}
