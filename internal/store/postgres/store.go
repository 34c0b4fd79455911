package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salon/kiosk-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements every store contract of the service on one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ store.CheckInStore        = (*Store)(nil)
	_ store.BookingRequestStore = (*Store)(nil)
	_ store.CheckoutStore       = (*Store)(nil)
	_ store.SessionStore        = (*Store)(nil)
	_ store.TodaySummaryStore   = (*Store)(nil)
	_ store.OutboxStore         = (*Store)(nil)
	_ store.AuditStore          = (*Store)(nil)
)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// inTx runs fn in a transaction, rolling back when fn or the commit fails.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) TenantTimezone(ctx context.Context, tenantID string) (string, error) {
	var tz string
	row := s.pool.QueryRow(ctx, `SELECT timezone FROM salons WHERE salon_id = $1`, tenantID)
	if err := row.Scan(&tz); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrTenantNotFound
		}
		return "", err
	}
	return tz, nil
}

// insertOutboxEvent writes the integration event and the matching entity
// audit link inside the caller's transaction.
func insertOutboxEvent(ctx context.Context, tx pgx.Tx, tenantID, eventType, entityID string, payload map[string]interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, tenant_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), tenantID, eventType, payloadJSON, time.Now().UTC())
	if err != nil {
		return err
	}
	return insertEntityEvent(ctx, tx, tenantID, entityID, eventType, payloadJSON)
}

func insertEntityEvent(ctx context.Context, tx pgx.Tx, tenantID, entityID, eventType string, payload []byte) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, entityID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash *string
	row := tx.QueryRow(ctx, `
		SELECT seq, hash
		FROM entity_events
		WHERE entity_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, entityID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash != nil {
		prev = *prevHash
	}
	// Postgres keeps microseconds; hash what will be read back.
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	hash := store.ComputeEntityEventHash(prev, entityID, eventType, payload, createdAt, nextSeq)

	_, err := tx.Exec(ctx, `
		INSERT INTO entity_events (entity_id, salon_id, seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entityID, tenantID, nextSeq, eventType, string(payload), createdAt, prev, hash)
	return err
}

func (s *Store) ListEntityEvents(ctx context.Context, tenantID, entityID string) ([]store.EntityEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_id, seq, type, payload::text, created_at, prev_hash, hash
		FROM entity_events
		WHERE entity_id = $1 AND salon_id = $2
		ORDER BY seq ASC
	`, entityID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.EntityEvent
	for rows.Next() {
		var event store.EntityEvent
		var payload string
		if err := rows.Scan(&event.EntityID, &event.Seq, &event.Type, &payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		event.Payload = json.RawMessage(payload)
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}

// RelayOutboxBatch holds the row locks while publish runs, so a crash
// before commit leaves the batch unpublished rather than lost.
func (s *Store) RelayOutboxBatch(ctx context.Context, limit int, publish store.OutboxPublishFunc) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	published := 0
	var publishErr error
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT event_id::text, tenant_id::text, type, payload_json, created_at
			FROM outbox_events
			WHERE published_at IS NULL
			ORDER BY created_at ASC, event_id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return err
		}
		var events []store.OutboxEvent
		for rows.Next() {
			var event store.OutboxEvent
			if err := rows.Scan(&event.EventID, &event.TenantID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			events = append(events, event)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		published, publishErr = publish(ctx, events)
		if published > len(events) {
			published = len(events)
		}
		if published == 0 {
			return nil
		}
		ids := make([]string, 0, published)
		for _, event := range events[:published] {
			ids = append(ids, event.EventID)
		}
		_, err = tx.Exec(ctx, `
			UPDATE outbox_events
			SET published_at = $1
			WHERE event_id = ANY($2::text[]::uuid[])
		`, time.Now().UTC(), ids)
		return err
	})
	if err != nil {
		return 0, errors.Join(publishErr, fmt.Errorf("mark published: %w", err))
	}
	return published, publishErr
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
