package subscribers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"chanbus/internal/bus"
	"chanbus/internal/events"
)

func TestRegistryResolvesFreshInstances(t *testing.T) {
	reg := NewRegistry()

	var built atomic.Int32
	reg.Register(events.KindOrderShipped, func() bus.Handler {
		built.Add(1)
		return bus.Adapt(NewShipping(zap.NewNop(), 0))
	})

	first := reg.Resolve(context.Background(), events.KindOrderShipped)
	second := reg.Resolve(context.Background(), events.KindOrderShipped)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotSame(t, first[0], second[0])
	assert.Equal(t, int32(2), built.Load())

	assert.Empty(t, reg.Resolve(context.Background(), events.KindPaymentProcessed))

	reg.Unregister(events.KindOrderShipped)
	assert.Empty(t, reg.Resolve(context.Background(), events.KindOrderShipped))
}

func TestRegistryConcurrentRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Register(events.KindOrderCreated, func() bus.Handler {
				return bus.Adapt(NewOrderNotification(zap.NewNop(), 0))
			})
		}()
		go func() {
			defer wg.Done()
			_ = reg.Resolve(context.Background(), events.KindOrderCreated)
		}()
	}
	wg.Wait()

	assert.Len(t, reg.Resolve(context.Background(), events.KindOrderCreated), 32)
}

func TestRegisterDefaults(t *testing.T) {
	require.Error(t, RegisterDefaults(nil, Config{}, zap.NewNop()))
	require.Error(t, RegisterDefaults(NewRegistry(), Config{}, nil))

	reg := NewRegistry()
	require.NoError(t, RegisterDefaults(reg, Config{}, zap.NewNop()))

	names := func(kind bus.Kind) []string {
		var out []string
		for _, h := range reg.Resolve(context.Background(), kind) {
			out = append(out, bus.HandlerName(h))
		}
		return out
	}

	assert.Equal(t, []string{"OrderNotification", "EmailNotification"}, names(events.KindOrderCreated))
	assert.Equal(t, []string{"Shipping"}, names(events.KindOrderShipped))
	assert.Equal(t, []string{"Payment"}, names(events.KindPaymentProcessed))
}

func TestSubscribersLogBusinessMessages(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	ctx := context.Background()

	created := events.NewOrderCreated("123", 100, "a@b.com")
	require.NoError(t, bus.Adapt(NewOrderNotification(logger, 0)).Handle(ctx, created))
	require.NoError(t, bus.Adapt(NewEmailNotification(logger, 0)).Handle(ctx, created))
	require.NoError(t, bus.Adapt(NewShipping(logger, 0)).Handle(ctx, events.NewOrderShipped("o1", "T1")))
	require.NoError(t, bus.Adapt(NewPayment(logger, 0)).Handle(ctx, events.NewPaymentProcessed("p1", 50, "o1")))

	assert.Equal(t, 1, logs.FilterMessage("order created").FilterField(zap.String("order_id", "123")).Len())
	assert.Equal(t, 1, logs.FilterMessage("sending confirmation email").FilterField(zap.String("email", "a@b.com")).Len())
	assert.Equal(t, 1, logs.FilterMessage("order shipped").FilterField(zap.String("tracking_number", "T1")).Len())
	assert.Equal(t, 1, logs.FilterMessage("payment processed").FilterField(zap.String("payment_id", "p1")).Len())
}

func TestSubscriberHonorsCancellation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := bus.Adapt(NewPayment(zap.New(core), time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := h.Handle(ctx, events.NewPaymentProcessed("p1", 50, "o1"))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, logs.Len())
}

func TestSubscriberRejectsOtherKinds(t *testing.T) {
	h := bus.Adapt(NewShipping(zap.NewNop(), 0))

	err := h.Handle(context.Background(), events.NewOrderCreated("123", 100, "a@b.com"))
	assert.ErrorIs(t, err, bus.ErrHandlerTypeMismatch)
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: map[string]string{
		"SHIPPING_DELAY": "250ms",
	}})
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.OrderNotificationDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.EmailNotificationDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.ShippingDelay)
	assert.Equal(t, 1200*time.Millisecond, cfg.PaymentDelay)
}
