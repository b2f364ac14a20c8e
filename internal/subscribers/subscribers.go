package subscribers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chanbus/internal/bus"
	"chanbus/internal/events"
	"chanbus/internal/validator"
)

// Config holds the simulated work time of each subscriber.
type Config struct {
	OrderNotificationDelay time.Duration `env:"ORDER_NOTIFICATION_DELAY" envDefault:"1s"`
	EmailNotificationDelay time.Duration `env:"EMAIL_NOTIFICATION_DELAY" envDefault:"1.5s"`
	ShippingDelay          time.Duration `env:"SHIPPING_DELAY" envDefault:"1s"`
	PaymentDelay           time.Duration `env:"PAYMENT_DELAY" envDefault:"1.2s"`
}

// RegisterDefaults registers the service's subscribers with reg.
func RegisterDefaults(reg *Registry, config Config, logger *zap.Logger) error {
	if err := validator.Validate("subscribers", reg, logger); err != nil {
		return fmt.Errorf("failed to validate subscriber deps: %w", err)
	}

	reg.Register(events.KindOrderCreated, func() bus.Handler {
		return bus.Adapt(NewOrderNotification(logger, config.OrderNotificationDelay))
	})
	reg.Register(events.KindOrderCreated, func() bus.Handler {
		return bus.Adapt(NewEmailNotification(logger, config.EmailNotificationDelay))
	})
	reg.Register(events.KindOrderShipped, func() bus.Handler {
		return bus.Adapt(NewShipping(logger, config.ShippingDelay))
	})
	reg.Register(events.KindPaymentProcessed, func() bus.Handler {
		return bus.Adapt(NewPayment(logger, config.PaymentDelay))
	})

	return nil
}

// OrderNotification announces new orders.
type OrderNotification struct {
	logger *zap.Logger
	delay  time.Duration
}

func NewOrderNotification(logger *zap.Logger, delay time.Duration) *OrderNotification {
	return &OrderNotification{logger: logger.Named("order_notification"), delay: delay}
}

func (s *OrderNotification) Name() string { return "OrderNotification" }

func (s *OrderNotification) Handle(ctx context.Context, evt events.OrderCreated) error {
	if err := work(ctx, s.delay); err != nil {
		return err
	}

	s.logger.Info("order created",
		zap.String("order_id", evt.OrderID),
		zap.Float64("amount", evt.Amount),
	)

	return nil
}

// EmailNotification sends the order confirmation email.
type EmailNotification struct {
	logger *zap.Logger
	delay  time.Duration
}

func NewEmailNotification(logger *zap.Logger, delay time.Duration) *EmailNotification {
	return &EmailNotification{logger: logger.Named("email_notification"), delay: delay}
}

func (s *EmailNotification) Name() string { return "EmailNotification" }

func (s *EmailNotification) Handle(ctx context.Context, evt events.OrderCreated) error {
	if err := work(ctx, s.delay); err != nil {
		return err
	}

	s.logger.Info("sending confirmation email",
		zap.String("email", evt.CustomerEmail),
		zap.String("order_id", evt.OrderID),
	)

	return nil
}

// Shipping records shipments and their tracking numbers.
type Shipping struct {
	logger *zap.Logger
	delay  time.Duration
}

func NewShipping(logger *zap.Logger, delay time.Duration) *Shipping {
	return &Shipping{logger: logger.Named("shipping"), delay: delay}
}

func (s *Shipping) Name() string { return "Shipping" }

func (s *Shipping) Handle(ctx context.Context, evt events.OrderShipped) error {
	if err := work(ctx, s.delay); err != nil {
		return err
	}

	s.logger.Info("order shipped",
		zap.String("order_id", evt.OrderID),
		zap.String("tracking_number", evt.TrackingNumber),
	)

	return nil
}

// Payment records settled payments.
type Payment struct {
	logger *zap.Logger
	delay  time.Duration
}

func NewPayment(logger *zap.Logger, delay time.Duration) *Payment {
	return &Payment{logger: logger.Named("payment"), delay: delay}
}

func (s *Payment) Name() string { return "Payment" }

func (s *Payment) Handle(ctx context.Context, evt events.PaymentProcessed) error {
	if err := work(ctx, s.delay); err != nil {
		return err
	}

	s.logger.Info("payment processed",
		zap.String("payment_id", evt.PaymentID),
		zap.Float64("amount", evt.Amount),
		zap.String("order_id", evt.OrderID),
	)

	return nil
}

// work simulates I/O by waiting d or until ctx is done.
func work(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
