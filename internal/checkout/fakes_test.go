package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	tenantA = "11111111-1111-1111-1111-111111111111"
	tenantB = "22222222-2222-2222-2222-222222222222"

	sessionOne     = "c0ffee00-0000-4000-8000-000000000001"
	sessionMissing = "c0ffee00-0000-4000-8000-0000000000ff"
)

type memStore struct {
	mu        sync.Mutex
	sessions  map[string]models.CheckoutSession
	items     map[string][]models.CheckoutLineItem
	ledger    map[string]models.WebhookEvent
	applied   int
	ledgerErr error
	applyErr  error
	released  []string
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]models.CheckoutSession{},
		items:    map[string][]models.CheckoutLineItem{},
		ledger:   map[string]models.WebhookEvent{},
	}
}

func (s *memStore) ClaimCheckoutSession(_ context.Context, tenantID, id string, at time.Time) (models.CheckoutSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[id]
	if !ok || row.TenantID != tenantID || row.ExternalSessionID != nil {
		return models.CheckoutSession{}, false, nil
	}
	row.Status = models.CheckoutCreating
	row.UpdatedAt = at
	s.sessions[id] = row
	return row, true, nil
}

func (s *memStore) GetCheckoutSession(_ context.Context, tenantID, id string) (models.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[id]
	if !ok || row.TenantID != tenantID {
		return models.CheckoutSession{}, store.ErrNotFound
	}
	return row, nil
}

func (s *memStore) ReleaseCheckoutClaim(_ context.Context, tenantID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[id]
	if ok && row.TenantID == tenantID && row.Status == models.CheckoutCreating && row.ExternalSessionID == nil {
		row.Status = models.CheckoutPending
		row.UpdatedAt = at
		s.sessions[id] = row
	}
	s.released = append(s.released, id)
	return nil
}

func (s *memStore) ListLineItems(_ context.Context, id string) ([]models.CheckoutLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id], nil
}

func (s *memStore) AttachExternalSession(_ context.Context, tenantID, id, externalID string, at time.Time) (models.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[id]
	if !ok || row.TenantID != tenantID {
		return models.CheckoutSession{}, store.ErrNotFound
	}
	row.ExternalSessionID = &externalID
	row.Status = models.CheckoutPending
	row.LastEventID, row.LastEventType, row.LastEventAt = nil, nil, nil
	row.UpdatedAt = at
	s.sessions[id] = row
	return row, nil
}

func (s *memStore) WebhookEventExists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ledger[id]
	return ok, nil
}

func (s *memStore) InsertWebhookEvent(_ context.Context, event models.WebhookEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledgerErr != nil {
		return false, s.ledgerErr
	}
	if _, ok := s.ledger[event.EventID]; ok {
		return false, nil
	}
	s.ledger[event.EventID] = event
	return true, nil
}

func (s *memStore) ReleaseWebhookEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ledger, id)
	return nil
}

// FindCheckoutSession fails the way a uuid column does for malformed ids.
func (s *memStore) FindCheckoutSession(_ context.Context, id string) (models.CheckoutSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.CheckoutSession{}, &pgconn.PgError{Code: "22P02", Message: fmt.Sprintf("invalid input syntax for type uuid: %q", id)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[id]
	if !ok {
		return models.CheckoutSession{}, store.ErrNotFound
	}
	return row, nil
}

func (s *memStore) FindCheckoutSessionByExternalID(_ context.Context, externalID string) (models.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.sessions {
		if row.ExternalSessionID != nil && *row.ExternalSessionID == externalID {
			return row, nil
		}
	}
	return models.CheckoutSession{}, store.ErrNotFound
}

func (s *memStore) ApplyCheckoutStatus(_ context.Context, input store.CheckoutStatusUpdate) (models.CheckoutSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return models.CheckoutSession{}, false, s.applyErr
	}
	row, ok := s.sessions[input.SessionID]
	if !ok || row.Status != input.FromStatus {
		return models.CheckoutSession{}, false, nil
	}
	row.Status = input.ToStatus
	eventID, eventType, at := input.EventID, input.EventType, input.EventAt
	row.LastEventID, row.LastEventType, row.LastEventAt = &eventID, &eventType, &at
	if input.PaymentIntentID != "" {
		pi := input.PaymentIntentID
		row.ExternalPaymentIntentID = &pi
	}
	if input.ToStatus == models.CheckoutCompleted {
		row.CompletedAt = &at
	}
	s.sessions[input.SessionID] = row
	s.applied++
	return row, true, nil
}

type fakeProcessor struct {
	mu        sync.Mutex
	created   []CreateSessionRequest
	createErr error
	retrieved map[string]ProcessorSession
	events    map[string]Event
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{retrieved: map[string]ProcessorSession{}, events: map[string]Event{}}
}

func (p *fakeProcessor) CreateSession(_ context.Context, req CreateSessionRequest) (ProcessorSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return ProcessorSession{}, p.createErr
	}
	p.created = append(p.created, req)
	id := "cs_" + req.IdempotencyKey
	return ProcessorSession{ID: id, URL: "https://pay.example/" + id, Status: ProcessorOpen}, nil
}

func (p *fakeProcessor) RetrieveSession(_ context.Context, id string) (ProcessorSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.retrieved[id]
	if !ok {
		return ProcessorSession{}, errors.New("no such session")
	}
	return s, nil
}

// VerifyEvent treats the payload as an event id and the signature as a
// shared secret.
func (p *fakeProcessor) VerifyEvent(payload []byte, signature string) (Event, error) {
	if signature != "good" {
		return Event{}, errors.New("signature mismatch")
	}
	event, ok := p.events[string(payload)]
	if !ok {
		return Event{}, errors.New("unparseable payload")
	}
	return event, nil
}
