package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salon/kiosk-service/internal/metrics"
	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Webhook event types the reconciler acts on.
const (
	EventSessionCompleted      = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventSessionExpired        = "checkout.session.expired"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
)

// Dispositions reported for acknowledged deliveries.
const (
	DispositionApplied   = "applied"
	DispositionDuplicate = "duplicate"
	DispositionOrphan    = "orphan"
	DispositionIgnored   = "ignored"
	DispositionRejected  = "rejected"
)

const maxApplyAttempts = 2

type WebhookResult struct {
	EventID     string
	Disposition string
	SessionID   string
	Status      string
}

type Reconciler struct {
	store     store.CheckoutStore
	processor Processor
	now       func() time.Time
	log       zerolog.Logger
}

func NewReconciler(st store.CheckoutStore, processor Processor, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:     st,
		processor: processor,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.With().Str("ctx", "stripe_webhook").Logger(),
	}
}

func targetStatus(eventType string) string {
	switch eventType {
	case EventSessionCompleted, EventAsyncPaymentSucceeded:
		return models.CheckoutCompleted
	case EventSessionExpired:
		return models.CheckoutExpired
	case EventAsyncPaymentFailed:
		return models.CheckoutFailed
	default:
		return ""
	}
}

// Handle verifies and applies one webhook delivery. Every error except
// ErrInvalidSignature, ErrTenantMismatch, ErrLedgerWrite and ErrPersistence
// is absorbed into an acknowledged result.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	if signature == "" {
		r.log.Info().Str("phase", "missing_signature").Msg("webhook")
		return WebhookResult{}, fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	event, err := r.processor.VerifyEvent(payload, signature)
	if err != nil {
		r.log.Info().Str("phase", "invalid_signature").Msg("webhook")
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	internalID := event.Metadata[MetaCheckoutSessionID]
	logger := r.log.With().
		Str("stripe_event_id", event.ID).
		Str("event_type", event.Type).
		Str("stripe_session_id", event.ObjectID).
		Str("internal_checkout_session_id", internalID).
		Logger()
	logger.Info().Str("phase", "received").Msg("webhook")

	exists, err := r.store.WebhookEventExists(ctx, event.ID)
	if err != nil {
		// The insert below is the authoritative claim.
		logger.Warn().Err(err).Str("phase", "ledger_lookup_failed").Msg("webhook")
	}
	if exists {
		return r.ack(logger, event, DispositionDuplicate, "", ""), nil
	}

	record := models.WebhookEvent{EventID: event.ID, Type: event.Type, ReceivedAt: r.now()}
	if event.ObjectID != "" {
		objectID := event.ObjectID
		record.ExternalSessionID = &objectID
	}
	inserted, err := r.store.InsertWebhookEvent(ctx, record)
	if err != nil {
		logger.Error().Err(err).Str("phase", "event_log_failed").Msg("webhook")
		metrics.WebhookEvents.WithLabelValues(event.Type, "ledger_error").Inc()
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	if !inserted {
		return r.ack(logger, event, DispositionDuplicate, "", ""), nil
	}

	session, found, err := r.resolve(ctx, event)
	if err != nil {
		return WebhookResult{}, r.abandon(ctx, logger, event, err)
	}
	if !found {
		return r.ack(logger, event, DispositionOrphan, "", ""), nil
	}

	if tenantID := event.Metadata[MetaTenantID]; tenantID != "" && tenantID != session.TenantID {
		logger.Warn().
			Str("phase", "salon_mismatch").
			Str("checkout_session_id", session.SessionID).
			Str("event_salon_id", tenantID).
			Str("session_salon_id", session.TenantID).
			Msg("webhook")
		metrics.WebhookEvents.WithLabelValues(event.Type, "tenant_mismatch").Inc()
		return WebhookResult{}, ErrTenantMismatch
	}

	target := targetStatus(event.Type)
	if target == "" {
		return r.ack(logger, event, DispositionIgnored, session.SessionID, session.Status), nil
	}

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		if !store.AllowCheckoutTransition(session.Status, target) {
			return r.ack(logger, event, DispositionRejected, session.SessionID, session.Status), nil
		}
		update := store.CheckoutStatusUpdate{
			SessionID:  session.SessionID,
			FromStatus: session.Status,
			ToStatus:   target,
			EventID:    event.ID,
			EventType:  event.Type,
			EventAt:    r.now(),
		}
		if target == models.CheckoutCompleted {
			update.PaymentIntentID = event.PaymentIntentID
		}
		updated, applied, err := r.store.ApplyCheckoutStatus(ctx, update)
		if err != nil {
			return WebhookResult{}, r.abandon(ctx, logger, event, err)
		}
		if applied {
			logger.Info().
				Str("phase", "status_update").
				Str("checkout_session_id", updated.SessionID).
				Str("resulting_status", updated.Status).
				Msg("webhook")
			return r.ack(logger, event, DispositionApplied, updated.SessionID, updated.Status), nil
		}
		// Another delivery moved the session first; judge against its state.
		session, err = r.store.FindCheckoutSession(ctx, session.SessionID)
		if err != nil {
			return WebhookResult{}, r.abandon(ctx, logger, event, err)
		}
	}
	return r.ack(logger, event, DispositionRejected, session.SessionID, session.Status), nil
}

func (r *Reconciler) resolve(ctx context.Context, event Event) (models.CheckoutSession, bool, error) {
	// Sessions created by other apps on the account carry arbitrary ids.
	if id := event.Metadata[MetaCheckoutSessionID]; isSessionID(id) {
		session, err := r.store.FindCheckoutSession(ctx, id)
		if err == nil {
			return session, true, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return models.CheckoutSession{}, false, err
		}
	}
	if event.ObjectID != "" {
		session, err := r.store.FindCheckoutSessionByExternalID(ctx, event.ObjectID)
		if err == nil {
			return session, true, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return models.CheckoutSession{}, false, err
		}
	}
	return models.CheckoutSession{}, false, nil
}

func isSessionID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// abandon gives the ledger claim back after a store failure so the
// provider's redelivery is not swallowed as a duplicate.
func (r *Reconciler) abandon(ctx context.Context, logger zerolog.Logger, event Event, cause error) error {
	logger.Error().Err(cause).Str("phase", "apply_failed").Msg("webhook")
	metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
	if err := r.store.ReleaseWebhookEvent(ctx, event.ID); err != nil {
		logger.Error().Err(err).Str("phase", "ledger_release_failed").Msg("webhook")
	}
	return fmt.Errorf("%w: %v", ErrPersistence, cause)
}

func (r *Reconciler) ack(logger zerolog.Logger, event Event, disposition, sessionID, status string) WebhookResult {
	logger.Info().
		Str("phase", disposition).
		Bool("deduped", disposition == DispositionDuplicate).
		Str("checkout_session_id", sessionID).
		Msg("webhook")
	metrics.WebhookEvents.WithLabelValues(event.Type, disposition).Inc()
	return WebhookResult{EventID: event.ID, Disposition: disposition, SessionID: sessionID, Status: status}
}
