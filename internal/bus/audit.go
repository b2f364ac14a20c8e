package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"chanbus/internal/couchbase"
	"chanbus/internal/validator"
)

// Auditor records an audit entry for every published event.
type Auditor interface {
	Record(ctx context.Context, evt Event) error
}

// AuditRecord is the persisted audit entry of a published event.
// The audit trail is write-only; events are never replayed from it.
type AuditRecord struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	EventID     string    `json:"eventId"`
	OccurredAt  time.Time `json:"occurredAt"`
	PublishedAt time.Time `json:"publishedAt"`
	Payload     any       `json:"payload"`

	couchbase.Cas `json:"-"`
}

// NewAuditRecord builds the audit entry for an event.
func NewAuditRecord(evt Event, publishedAt time.Time) AuditRecord {
	return AuditRecord{
		ID:          AuditKey(evt.Kind(), evt.ID()),
		Kind:        evt.Kind(),
		EventID:     evt.ID(),
		OccurredAt:  evt.OccurredAt(),
		PublishedAt: publishedAt.UTC(),
		Payload:     evt,
	}
}

// NewAuditStore opens the "audit" collection of scope as an AuditStore.
func NewAuditStore(cluster *gocb.Cluster, bucket *gocb.Bucket, scope string) (*couchbase.Couchbase[AuditRecord], error) {
	collection := bucket.Scope(scope).Collection("audit")
	store, err := couchbase.NewCouchbase[AuditRecord](cluster, bucket, collection)
	if err != nil {
		return nil, err
	}

	return store, nil
}

// AuditKey is the document key of an event's audit record.
func AuditKey(kind Kind, eventID string) string {
	return fmt.Sprintf("audit::%s::%s", kind, eventID)
}

// AuditStore persists audit records. *couchbase.Couchbase[AuditRecord] satisfies it.
type AuditStore interface {
	Insert(ctx context.Context, key string, value AuditRecord, opts *gocb.InsertOptions) error
	Get(ctx context.Context, key string, opts *gocb.GetOptions) (*AuditRecord, error)
}

var _ AuditStore = (*couchbase.Couchbase[AuditRecord])(nil)

// AuditLog is an Auditor backed by a Couchbase collection.
type AuditLog struct {
	store AuditStore
	now   func() time.Time
}

// NewAuditLog creates an AuditLog writing through the given store.
func NewAuditLog(store AuditStore) (*AuditLog, error) {
	a := AuditLog{store: store, now: time.Now}

	if err := validator.Validate("audit log", a.store); err != nil {
		return nil, fmt.Errorf("failed to validate audit log deps: %w", err)
	}

	return &a, nil
}

// Record implements Auditor.Record. Re-recording the same event is not an error.
func (a *AuditLog) Record(ctx context.Context, evt Event) error {
	rec := NewAuditRecord(evt, a.now())

	if err := a.store.Insert(ctx, rec.ID, rec, nil); err != nil && !errors.Is(err, gocb.ErrDocumentExists) {
		return fmt.Errorf("failed to insert audit record %s: %w", rec.ID, err)
	}

	return nil
}

// Lookup returns the audit record of a published event.
// It returns ErrAuditRecordNotFound when the event was never recorded.
func (a *AuditLog) Lookup(ctx context.Context, kind Kind, eventID string) (*AuditRecord, error) {
	key := AuditKey(kind, eventID)

	rec, err := a.store.Get(ctx, key, nil)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, gocb.ErrDocumentNotFound):
		return nil, fmt.Errorf("lookup %s: %w", key, ErrAuditRecordNotFound)
	default:
		return nil, fmt.Errorf("failed to get audit record %s: %w", key, err)
	}
}
