// Package httpapi translates HTTP requests into published events.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chanbus/internal/bus"
	"chanbus/internal/events"
	"chanbus/internal/validator"
)

// AuditLookup reads back the audit entry of a published event.
type AuditLookup interface {
	Lookup(ctx context.Context, kind bus.Kind, eventID string) (*bus.AuditRecord, error)
}

type Option func(*Handler)

// WithAudit enables GET /api/events/{kind}/{eventId}.
func WithAudit(audit AuditLookup) Option {
	return func(h *Handler) {
		h.audit = audit
	}
}

// WithIdempotency guards the publishing endpoints with the Idempotency-Key middleware.
func WithIdempotency(store IdempotencyStore) Option {
	return func(h *Handler) {
		h.idempotency = store
	}
}

// Handler serves the event publishing API.
type Handler struct {
	publisher   bus.Publisher
	logger      *zap.Logger
	audit       AuditLookup
	idempotency IdempotencyStore
}

// New constructs a router that publishes through publisher.
func New(publisher bus.Publisher, logger *zap.Logger, opts ...Option) (http.Handler, error) {
	h := &Handler{publisher: publisher, logger: logger}
	if err := validator.Validate("http api", h.publisher, h.logger); err != nil {
		return nil, fmt.Errorf("failed to validate http api deps: %w", err)
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.idempotency != nil {
				r.Use(Idempotency(h.idempotency, h.logger))
			}
			r.Post("/orders", h.handleCreateOrder)
			r.Post("/orders/{orderId}/ship", h.handleShipOrder)
			r.Post("/payments", h.handleProcessPayment)
		})
		r.Get("/events/{kind}/{eventId}", h.handleGetEvent)
	})

	return r, nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type createOrderRequest struct {
	OrderID       string  `json:"orderId"`
	Amount        float64 `json:"amount"`
	CustomerEmail string  `json:"customerEmail"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "missing orderId")
		return
	}

	h.logger.Info("creating order", zap.String("order_id", req.OrderID))

	evt := events.NewOrderCreated(req.OrderID, req.Amount, req.CustomerEmail)
	if !h.publish(w, r, evt) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Order created successfully",
		"orderId": req.OrderID,
		"eventId": evt.ID(),
	})
}

type shipOrderRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

func (h *Handler) handleShipOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req shipOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if orderID == "" || req.TrackingNumber == "" {
		writeError(w, http.StatusBadRequest, "missing orderId or trackingNumber")
		return
	}

	h.logger.Info("shipping order", zap.String("order_id", orderID))

	evt := events.NewOrderShipped(orderID, req.TrackingNumber)
	if !h.publish(w, r, evt) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":        "Order shipped successfully",
		"trackingNumber": req.TrackingNumber,
		"eventId":        evt.ID(),
	})
}

type processPaymentRequest struct {
	PaymentID string  `json:"paymentId"`
	Amount    float64 `json:"amount"`
	OrderID   string  `json:"orderId"`
}

func (h *Handler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PaymentID == "" || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "missing paymentId or orderId")
		return
	}

	h.logger.Info("processing payment", zap.String("payment_id", req.PaymentID))

	evt := events.NewPaymentProcessed(req.PaymentID, req.Amount, req.OrderID)
	if !h.publish(w, r, evt) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Payment processed successfully",
		"paymentId": req.PaymentID,
		"eventId":   evt.ID(),
	})
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	kind := bus.Kind(chi.URLParam(r, "kind"))
	eventID := chi.URLParam(r, "eventId")

	if h.audit == nil {
		writeError(w, http.StatusNotFound, "event auditing is disabled")
		return
	}
	if !slices.Contains(events.Kinds(), kind) {
		writeError(w, http.StatusNotFound, "unknown event kind")
		return
	}

	rec, err := h.audit.Lookup(r.Context(), kind, eventID)
	if err != nil {
		if errors.Is(err, bus.ErrAuditRecordNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.Error("failed to look up audit record", zap.String("kind", kind.String()), zap.String("event_id", eventID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up event")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// publish writes the error response itself and reports whether the event was accepted.
func (h *Handler) publish(w http.ResponseWriter, r *http.Request, evt bus.Event) bool {
	err := h.publisher.Publish(r.Context(), evt)
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, bus.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, "service is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		h.logger.Error("failed to publish event", zap.String("kind", evt.Kind().String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to publish event")
	}

	return false
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
