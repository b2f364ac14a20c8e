package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryAuditStore struct {
	mu      sync.Mutex
	records map[string]AuditRecord
	err     error
}

var _ AuditStore = (*memoryAuditStore)(nil)

func newMemoryAuditStore() *memoryAuditStore {
	return &memoryAuditStore{records: map[string]AuditRecord{}}
}

func (s *memoryAuditStore) Insert(_ context.Context, key string, value AuditRecord, _ *gocb.InsertOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.records[key]; ok {
		return fmt.Errorf("failed to insert document with key %s: %w", key, gocb.ErrDocumentExists)
	}
	s.records[key] = value
	return nil
}

func (s *memoryAuditStore) Get(_ context.Context, key string, _ *gocb.GetOptions) (*AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("failed to get document with key %s: %w", key, gocb.ErrDocumentNotFound)
	}
	return &rec, nil
}

func TestNewAuditLogValidatesStore(t *testing.T) {
	_, err := NewAuditLog(nil)
	assert.Error(t, err)
}

func TestNewAuditRecord(t *testing.T) {
	evt := signedUp{Base: NewBase(), Email: "a@b.com"}
	publishedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	rec := NewAuditRecord(evt, publishedAt)

	assert.Equal(t, "audit::SignedUp::"+evt.ID(), rec.ID)
	assert.Equal(t, Kind("SignedUp"), rec.Kind)
	assert.Equal(t, evt.ID(), rec.EventID)
	assert.Equal(t, evt.OccurredAt(), rec.OccurredAt)
	assert.Equal(t, time.UTC, rec.PublishedAt.Location())
	assert.True(t, rec.PublishedAt.Equal(publishedAt))
	assert.Equal(t, evt, rec.Payload)
}

func TestAuditLogRecordAndLookup(t *testing.T) {
	store := newMemoryAuditStore()
	auditLog, err := NewAuditLog(store)
	require.NoError(t, err)

	ctx := context.Background()
	evt := signedUp{Base: NewBase(), Email: "a@b.com"}

	require.NoError(t, auditLog.Record(ctx, evt))
	require.NoError(t, auditLog.Record(ctx, evt), "re-recording is not an error")

	rec, err := auditLog.Lookup(ctx, evt.Kind(), evt.ID())
	require.NoError(t, err)
	assert.Equal(t, evt.ID(), rec.EventID)

	_, err = auditLog.Lookup(ctx, evt.Kind(), "unknown")
	assert.ErrorIs(t, err, ErrAuditRecordNotFound)
}

func TestAuditLogStoreFailures(t *testing.T) {
	store := newMemoryAuditStore()
	store.err = errors.New("cluster unavailable")
	auditLog, err := NewAuditLog(store)
	require.NoError(t, err)

	evt := signedUp{Base: NewBase()}

	err = auditLog.Record(context.Background(), evt)
	assert.ErrorIs(t, err, store.err)

	_, err = auditLog.Lookup(context.Background(), evt.Kind(), evt.ID())
	assert.ErrorIs(t, err, store.err)
	assert.NotErrorIs(t, err, ErrAuditRecordNotFound)
}
