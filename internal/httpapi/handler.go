package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"salon/kiosk-service/internal/bookingrequest"
	"salon/kiosk-service/internal/checkin"
	"salon/kiosk-service/internal/checkout"
	"salon/kiosk-service/internal/metrics"
	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/store"
	"salon/kiosk-service/internal/summary"
)

const (
	maxBodyBytes        = 1 << 20
	kioskGenericMessage = "Something went wrong. Please see the front desk."
)

type CheckInService interface {
	CheckIn(ctx context.Context, input checkin.MatchInput) (checkin.Outcome, error)
	Confirm(ctx context.Context, input checkin.ConfirmInput) (checkin.Outcome, error)
	WalkIn(ctx context.Context, input checkin.WalkInInput) (checkin.WalkInResult, error)
}

type BookingRequestService interface {
	Create(ctx context.Context, tenantID string, input bookingrequest.CreateInput) (bookingrequest.CreateResult, error)
	Update(ctx context.Context, staff models.StaffIdentity, requestID string, patch bookingrequest.Patch) (models.BookingRequest, error)
	List(ctx context.Context, tenantID, status string, limit int) ([]models.BookingRequest, error)
}

type CheckoutService interface {
	Start(ctx context.Context, staff models.StaffIdentity, sessionID string) (checkout.StartResult, error)
}

type WebhookService interface {
	Handle(ctx context.Context, payload []byte, signature string) (checkout.WebhookResult, error)
}

type SummaryService interface {
	Today(ctx context.Context, tenantID string) (summary.Today, error)
}

type Handler struct {
	checkIn  CheckInService
	requests BookingRequestService
	checkout CheckoutService
	webhooks WebhookService
	summary  SummaryService
	sessions store.SessionStore
	audit    store.AuditStore
	kiosk    KioskAuth
	limiter  *RateLimiter
	pinger   Pinger
	log      zerolog.Logger
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	CheckIn         CheckInService
	BookingRequests BookingRequestService
	Checkout        CheckoutService
	Webhooks        WebhookService
	Summary         SummaryService
	Sessions        store.SessionStore
	Audit           store.AuditStore
	Kiosk           KioskAuth
	RateLimit       RateLimitConfig
	Pinger          Pinger
	Logger          zerolog.Logger
}

func NewHandler(options Options) *Handler {
	return &Handler{
		checkIn:  options.CheckIn,
		requests: options.BookingRequests,
		checkout: options.Checkout,
		webhooks: options.Webhooks,
		summary:  options.Summary,
		sessions: options.Sessions,
		audit:    options.Audit,
		kiosk:    options.Kiosk,
		limiter:  NewRateLimiter(options.RateLimit),
		pinger:   options.Pinger,
		log:      options.Logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(h.log))
	r.Use(metrics.HTTPMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/kiosk", func(r chi.Router) {
		r.Use(h.limiter.Middleware)
		r.Post("/check-in", h.handleCheckIn)
		r.Post("/check-in/confirm", h.handleConfirm)
		r.Post("/walk-in", h.handleWalkIn)
	})

	r.With(h.limiter.Middleware, h.requireKiosk).Post("/api/booking-requests", h.handleCreateBookingRequest)
	r.Post("/api/stripe/webhook", h.handleStripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.requireStaff)
		r.Get("/api/booking-requests", h.handleListBookingRequests)
		r.Patch("/api/booking-requests/{id}", h.handleUpdateBookingRequest)
		r.Post("/api/checkout/session", h.handleStartCheckout)
		r.Get("/api/admin/today", h.handleToday)
		r.Get("/api/admin/audit/{entityId}", h.handleAudit)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.log.Error().Err(err).Msg("health check failed")
			writeError(w, requestIDFromRequest(r), http.StatusServiceUnavailable, "unavailable", "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return decoder.Decode(dst)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, checkin.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request", "invalid request"
	case errors.Is(err, bookingrequest.ErrInvalidPayload):
		return http.StatusBadRequest, "invalid_payload", "invalid payload"
	case errors.Is(err, bookingrequest.ErrInvalidPhone):
		return http.StatusBadRequest, "invalid_phone", "invalid phone"
	case errors.Is(err, bookingrequest.ErrNoChanges):
		return http.StatusBadRequest, "no_changes", "no changes supplied"
	case errors.Is(err, checkout.ErrNoLineItems):
		return http.StatusBadRequest, "no_line_items", "no line items for checkout session"
	case errors.Is(err, checkout.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature", "invalid signature"
	case errors.Is(err, bookingrequest.ErrForbidden), errors.Is(err, checkout.ErrTenantMismatch):
		return http.StatusForbidden, "forbidden", "forbidden"
	case errors.Is(err, checkin.ErrBookingNotEligible):
		return http.StatusNotFound, "booking_not_found", "booking not found or not eligible"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, bookingrequest.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "status cannot move backward"
	case errors.Is(err, checkout.ErrAlreadyPaid):
		return http.StatusConflict, "already_paid", "checkout session already completed"
	case errors.Is(err, checkout.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "too many requests"
	case errors.Is(err, checkout.ErrUpstream):
		return http.StatusBadGateway, "upstream_error", "payment processor unavailable"
	case errors.Is(err, checkout.ErrLedgerWrite), errors.Is(err, checkout.ErrPersistence):
		return http.StatusInternalServerError, "webhook_persist_failed", "failed to persist webhook"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

// writeServiceError logs server-side failures before answering.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", requestIDFromRequest(r)).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, requestIDFromRequest(r), status, code, message)
}

// writeKioskError never exposes detail beyond the status class to the
// unauthenticated kiosk surface.
func (h *Handler) writeKioskError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, _ := mapError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", requestIDFromRequest(r)).Str("path", r.URL.Path).Msg("kiosk request failed")
	}
	writeError(w, requestIDFromRequest(r), status, code, kioskGenericMessage)
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func requestIDFromRequest(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}
