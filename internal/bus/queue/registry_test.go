package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanbus/internal/bus"
)

func TestRegistrySingleQueuePerKindUnderRace(t *testing.T) {
	var created atomic.Int32
	r := NewRegistry(WithOnCreate(func(*Queue) { created.Add(1) }))

	const callers = 64

	var (
		start sync.WaitGroup
		done  sync.WaitGroup
		got   [callers]*Queue
	)
	start.Add(1)
	for i := range callers {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			got[i] = r.Queue(testKind)
		}()
	}
	start.Done()
	done.Wait()

	assert.Equal(t, int32(1), created.Load())
	for i := 1; i < callers; i++ {
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, []bus.Kind{testKind}, r.Kinds())
}

func TestRegistryConcurrentFirstEnqueueAndDequeue(t *testing.T) {
	var created atomic.Int32
	r := NewRegistry(WithOnCreate(func(*Queue) { created.Add(1) }))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				assert.NoError(t, r.Enqueue(ctx, newTestEvent(i)))
				return
			}
			_ = r.Dequeue(ctx, testKind)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, 16, r.Queue(testKind).Len())
}

func TestRegistryRoutesByKind(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, newTestEvent(1)))
	require.NoError(t, r.Enqueue(ctx, otherEvent{Base: bus.NewBase()}))

	assert.Equal(t, 1, r.Queue(testKind).Len())
	assert.Equal(t, 1, r.Queue(otherKind).Len())
	assert.Equal(t, []bus.Kind{otherKind, testKind}, r.Kinds())
}

func TestRegistryDequeueSequence(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, r.Enqueue(ctx, newTestEvent(i)))
	}
	r.Close()

	var seqs []int
	for evt := range r.Dequeue(ctx, testKind) {
		seqs = append(seqs, evt.(testEvent).Seq)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seqs)
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	known := r.Queue(testKind)
	r.Close()

	assert.True(t, known.Closed())
	assert.ErrorIs(t, r.Enqueue(ctx, newTestEvent(1)), bus.ErrQueueClosed)

	// kinds first referenced after shutdown are closed from birth
	assert.ErrorIs(t, r.Enqueue(ctx, otherEvent{Base: bus.NewBase()}), bus.ErrQueueClosed)
	assert.True(t, r.Queue(otherKind).Closed())
}

const otherKind bus.Kind = "OtherEvent"

type otherEvent struct {
	bus.Base
}

func (otherEvent) Kind() bus.Kind { return otherKind }
