package postgres

import (
	"context"
	"errors"
	"time"

	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const checkoutColumns = `checkout_session_id, salon_id, customer_id, booking_id, subtotal_cents, tax_cents, tip_cents, total_cents,
	status, stripe_checkout_session_id, stripe_payment_intent_id, last_stripe_event_id, last_stripe_event_type,
	last_stripe_event_at, completed_at, created_at, updated_at`

func scanCheckoutSession(row pgx.Row) (models.CheckoutSession, error) {
	var c models.CheckoutSession
	err := row.Scan(&c.SessionID, &c.TenantID, &c.CustomerID, &c.BookingID, &c.SubtotalCents, &c.TaxCents, &c.TipCents, &c.TotalCents,
		&c.Status, &c.ExternalSessionID, &c.ExternalPaymentIntentID, &c.LastEventID, &c.LastEventType,
		&c.LastEventAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func checkoutOrNotFound(session models.CheckoutSession, err error) (models.CheckoutSession, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CheckoutSession{}, store.ErrNotFound
		}
		return models.CheckoutSession{}, err
	}
	return session, nil
}

// ClaimCheckoutSession grants the right to create the processor session to
// whoever flips it to creating while no external id is recorded.
func (s *Store) ClaimCheckoutSession(ctx context.Context, tenantID, sessionID string, at time.Time) (models.CheckoutSession, bool, error) {
	session, err := scanCheckoutSession(s.pool.QueryRow(ctx, `
		UPDATE checkout_sessions
		SET status = $1, updated_at = $2
		WHERE checkout_session_id = $3 AND salon_id = $4
			AND stripe_checkout_session_id IS NULL AND status <> $5
		RETURNING `+checkoutColumns,
		models.CheckoutCreating, at, sessionID, tenantID, models.CheckoutCompleted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CheckoutSession{}, false, nil
		}
		return models.CheckoutSession{}, false, err
	}
	return session, true, nil
}

func (s *Store) GetCheckoutSession(ctx context.Context, tenantID, sessionID string) (models.CheckoutSession, error) {
	return checkoutOrNotFound(scanCheckoutSession(s.pool.QueryRow(ctx, `
		SELECT `+checkoutColumns+`
		FROM checkout_sessions
		WHERE checkout_session_id = $1 AND salon_id = $2
	`, sessionID, tenantID)))
}

func (s *Store) ReleaseCheckoutClaim(ctx context.Context, tenantID, sessionID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE checkout_sessions
		SET status = $1, updated_at = $2
		WHERE checkout_session_id = $3 AND salon_id = $4
			AND status = $5 AND stripe_checkout_session_id IS NULL
	`, models.CheckoutPending, at, sessionID, tenantID, models.CheckoutCreating)
	return err
}

func (s *Store) ListLineItems(ctx context.Context, sessionID string) ([]models.CheckoutLineItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT line_item_id, checkout_session_id, item_type, description, quantity, unit_price_cents
		FROM checkout_line_items
		WHERE checkout_session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CheckoutLineItem
	for rows.Next() {
		var item models.CheckoutLineItem
		if err := rows.Scan(&item.LineItemID, &item.SessionID, &item.ItemType, &item.Description, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AttachExternalSession records the processor session and clears event
// bookkeeping left over from a replaced session.
func (s *Store) AttachExternalSession(ctx context.Context, tenantID, sessionID, externalID string, at time.Time) (models.CheckoutSession, error) {
	return checkoutOrNotFound(scanCheckoutSession(s.pool.QueryRow(ctx, `
		UPDATE checkout_sessions
		SET stripe_checkout_session_id = $1,
			status = $2,
			last_stripe_event_id = NULL,
			last_stripe_event_type = NULL,
			last_stripe_event_at = NULL,
			updated_at = $3
		WHERE checkout_session_id = $4 AND salon_id = $5
		RETURNING `+checkoutColumns,
		externalID, models.CheckoutPending, at, sessionID, tenantID)))
}

func (s *Store) WebhookEventExists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stripe_events WHERE event_id = $1)`, eventID)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) InsertWebhookEvent(ctx context.Context, event models.WebhookEvent) (bool, error) {
	receivedAt := event.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO stripe_events (event_id, type, checkout_session_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`, event.EventID, event.Type, event.ExternalSessionID, receivedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ReleaseWebhookEvent(ctx context.Context, eventID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM stripe_events WHERE event_id = $1`, eventID)
	return err
}

// FindCheckoutSession treats an id that is not a UUID as unknown; the
// column type would otherwise reject it with 22P02.
func (s *Store) FindCheckoutSession(ctx context.Context, sessionID string) (models.CheckoutSession, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return models.CheckoutSession{}, store.ErrNotFound
	}
	return checkoutOrNotFound(scanCheckoutSession(s.pool.QueryRow(ctx, `
		SELECT `+checkoutColumns+`
		FROM checkout_sessions
		WHERE checkout_session_id = $1
	`, sessionID)))
}

func (s *Store) FindCheckoutSessionByExternalID(ctx context.Context, externalID string) (models.CheckoutSession, error) {
	return checkoutOrNotFound(scanCheckoutSession(s.pool.QueryRow(ctx, `
		SELECT `+checkoutColumns+`
		FROM checkout_sessions
		WHERE stripe_checkout_session_id = $1
	`, externalID)))
}

// ApplyCheckoutStatus moves the session only if it is still in FromStatus.
// Bookkeeping columns change in the same statement so they always describe
// the event that produced the current status.
func (s *Store) ApplyCheckoutStatus(ctx context.Context, input store.CheckoutStatusUpdate) (models.CheckoutSession, bool, error) {
	eventAt := input.EventAt
	if eventAt.IsZero() {
		eventAt = time.Now().UTC()
	}
	var session models.CheckoutSession
	applied := false
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		session, err = scanCheckoutSession(tx.QueryRow(ctx, `
			UPDATE checkout_sessions
			SET status = $1::text,
				last_stripe_event_id = $2,
				last_stripe_event_type = $3,
				last_stripe_event_at = $4,
				updated_at = $4,
				stripe_payment_intent_id = COALESCE($5::text, stripe_payment_intent_id),
				completed_at = CASE WHEN $1::text = 'completed' THEN $4 ELSE completed_at END
			WHERE checkout_session_id = $6 AND status = $7
			RETURNING `+checkoutColumns,
			input.ToStatus, input.EventID, input.EventType, eventAt, nullIfEmpty(input.PaymentIntentID), input.SessionID, input.FromStatus))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		applied = true
		return insertOutboxEvent(ctx, tx, session.TenantID, "checkout.status_changed", session.SessionID, map[string]interface{}{
			"checkout_session_id": session.SessionID,
			"salon_id":            session.TenantID,
			"customer_id":         session.CustomerID,
			"from_status":         input.FromStatus,
			"status":              session.Status,
			"total_cents":         session.TotalCents,
			"stripe_event_id":     input.EventID,
			"stripe_event_type":   input.EventType,
			"completed_at":        session.CompletedAt,
		})
	})
	if err != nil {
		return models.CheckoutSession{}, false, err
	}
	return session, applied, nil
}

func (s *Store) ListCompletedCheckouts(ctx context.Context, tenantID string, from, to time.Time) ([]models.CheckoutSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+checkoutColumns+`
		FROM checkout_sessions
		WHERE salon_id = $1 AND status = $2 AND completed_at >= $3 AND completed_at <= $4
		ORDER BY completed_at DESC
	`, tenantID, models.CheckoutCompleted, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.CheckoutSession
	for rows.Next() {
		c, err := scanCheckoutSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, c)
	}
	return sessions, rows.Err()
}
