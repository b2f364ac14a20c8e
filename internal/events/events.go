// Package events defines the domain events routed by the bus.
package events

import (
	"chanbus/internal/bus"
)

// Event kinds routed by the service.
const (
	KindOrderCreated     bus.Kind = "OrderCreated"
	KindOrderShipped     bus.Kind = "OrderShipped"
	KindPaymentProcessed bus.Kind = "PaymentProcessed"
)

// Kinds returns every kind the dispatcher drains.
func Kinds() []bus.Kind {
	return []bus.Kind{KindOrderCreated, KindOrderShipped, KindPaymentProcessed}
}

// OrderCreated is published when a customer places an order.
type OrderCreated struct {
	bus.Base
	OrderID       string  `json:"orderId"`
	Amount        float64 `json:"amount"`
	CustomerEmail string  `json:"customerEmail"`
}

func NewOrderCreated(orderID string, amount float64, customerEmail string) OrderCreated {
	return OrderCreated{
		Base:          bus.NewBase(),
		OrderID:       orderID,
		Amount:        amount,
		CustomerEmail: customerEmail,
	}
}

func (OrderCreated) Kind() bus.Kind { return KindOrderCreated }

// OrderShipped is published when an order leaves the warehouse.
type OrderShipped struct {
	bus.Base
	OrderID        string `json:"orderId"`
	TrackingNumber string `json:"trackingNumber"`
}

func NewOrderShipped(orderID, trackingNumber string) OrderShipped {
	return OrderShipped{
		Base:           bus.NewBase(),
		OrderID:        orderID,
		TrackingNumber: trackingNumber,
	}
}

func (OrderShipped) Kind() bus.Kind { return KindOrderShipped }

// PaymentProcessed is published when a payment for an order settles.
type PaymentProcessed struct {
	bus.Base
	PaymentID string  `json:"paymentId"`
	Amount    float64 `json:"amount"`
	OrderID   string  `json:"orderId"`
}

func NewPaymentProcessed(paymentID string, amount float64, orderID string) PaymentProcessed {
	return PaymentProcessed{
		Base:      bus.NewBase(),
		PaymentID: paymentID,
		Amount:    amount,
		OrderID:   orderID,
	}
}

func (PaymentProcessed) Kind() bus.Kind { return KindPaymentProcessed }
