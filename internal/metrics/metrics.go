package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Kiosk service collectors
var (
	// HTTP

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiosk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// Check-in

	CheckInOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_checkin_outcomes_total",
			Help: "Check-in outcomes by status and reason",
		},
		[]string{"status", "reason"},
	)

	CheckInRaces = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_checkin_races_total",
			Help: "Check-in transitions lost to a concurrent writer",
		},
	)

	WalkIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_walkins_total",
			Help: "Walk-in visits recorded",
		},
		[]string{"customer_created"},
	)

	// Booking requests

	BookingRequestOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_booking_request_operations_total",
			Help: "Booking request operations",
		},
		[]string{"operation", "result"},
	)

	// Checkout

	CheckoutStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_checkout_starts_total",
			Help: "Checkout session start attempts",
		},
		[]string{"result"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_webhook_events_total",
			Help: "Payment webhook events by type and disposition",
		},
		[]string{"type", "disposition"},
	)

	// Outbox

	OutboxPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_outbox_published_total",
			Help: "Outbox events published to the broker",
		},
	)

	OutboxErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_outbox_errors_total",
			Help: "Outbox relay failures",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware records request counts and latency labelled by the chi
// route pattern so path parameters do not explode cardinality.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
