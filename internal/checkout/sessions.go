package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salon/kiosk-service/internal/metrics"
	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/store"

	"github.com/rs/zerolog"
)

const defaultCurrency = "usd"

type SessionsOptions struct {
	AppURL   string
	Currency string
	Debounce time.Duration
	Now      func() time.Time
	Logger   zerolog.Logger
}

type StartResult struct {
	URL    string `json:"url"`
	Reused bool   `json:"-"`
}

// Sessions creates hosted payment sessions for staff-built checkouts.
type Sessions struct {
	store     store.CheckoutStore
	processor Processor
	debouncer *Debouncer
	appURL    string
	currency  string
	now       func() time.Time
	log       zerolog.Logger
}

func NewSessions(st store.CheckoutStore, processor Processor, options SessionsOptions) *Sessions {
	currency := strings.ToLower(strings.TrimSpace(options.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	now := options.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Sessions{
		store:     st,
		processor: processor,
		debouncer: NewDebouncer(options.Debounce),
		appURL:    strings.TrimRight(options.AppURL, "/"),
		currency:  currency,
		now:       now,
		log:       options.Logger.With().Str("ctx", "checkout_session").Logger(),
	}
}

// Start returns a payment URL for the session, creating the processor
// session at most once. Concurrent callers that lose the claim reuse the
// winner's session when it is still usable.
func (s *Sessions) Start(ctx context.Context, staff models.StaffIdentity, sessionID string) (StartResult, error) {
	if !s.debouncer.Allow(debounceKey(staff)) {
		s.count("rate_limited")
		return StartResult{}, ErrRateLimited
	}

	session, claimed, err := s.store.ClaimCheckoutSession(ctx, staff.TenantID, sessionID, s.now())
	if err != nil {
		return StartResult{}, fmt.Errorf("claim checkout session: %w", err)
	}

	idempotencyKey := sessionID
	if !claimed {
		session, err = s.store.GetCheckoutSession(ctx, staff.TenantID, sessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return StartResult{}, store.ErrNotFound
			}
			return StartResult{}, fmt.Errorf("load checkout session: %w", err)
		}
		if session.Status == models.CheckoutCompleted {
			s.count("already_paid")
			return StartResult{}, ErrAlreadyPaid
		}
		if session.ExternalSessionID != nil {
			existing, err := s.processor.RetrieveSession(ctx, *session.ExternalSessionID)
			if err != nil {
				s.count("upstream_error")
				return StartResult{}, fmt.Errorf("%w: retrieve session: %v", ErrUpstream, err)
			}
			if existing.Status != ProcessorExpired && existing.URL != "" {
				s.count("reused")
				s.log.Info().Str("checkout_session_id", sessionID).Str("phase", "reused").Msg("checkout")
				return StartResult{URL: existing.URL, Reused: true}, nil
			}
			// A fresh key so the processor does not hand back the dead session.
			idempotencyKey = sessionID + ":" + *session.ExternalSessionID
		}
	}

	items, err := s.store.ListLineItems(ctx, sessionID)
	if err != nil {
		s.release(ctx, staff.TenantID, sessionID, claimed)
		return StartResult{}, fmt.Errorf("list line items: %w", err)
	}
	if len(items) == 0 {
		s.release(ctx, staff.TenantID, sessionID, claimed)
		s.count("no_line_items")
		return StartResult{}, ErrNoLineItems
	}

	created, err := s.processor.CreateSession(ctx, CreateSessionRequest{
		LineItems:  lineItems(items),
		Currency:   s.currency,
		SuccessURL: s.appURL + "/kiosk/checkout?status=success",
		CancelURL:  s.appURL + "/kiosk/checkout?status=cancelled",
		Metadata: map[string]string{
			MetaCheckoutSessionID: sessionID,
			MetaTenantID:          session.TenantID,
			MetaCustomerID:        session.CustomerID,
		},
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		s.release(ctx, staff.TenantID, sessionID, claimed)
		s.count("upstream_error")
		s.log.Error().Err(err).Str("checkout_session_id", sessionID).Str("phase", "create_failed").Msg("checkout")
		return StartResult{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if _, err := s.store.AttachExternalSession(ctx, staff.TenantID, sessionID, created.ID, s.now()); err != nil {
		return StartResult{}, fmt.Errorf("attach external session: %w", err)
	}

	s.count("created")
	s.log.Info().
		Str("checkout_session_id", sessionID).
		Str("salon_id", staff.TenantID).
		Str("external_session_id", created.ID).
		Bool("claimed", claimed).
		Str("phase", "created").
		Msg("checkout")
	return StartResult{URL: created.URL}, nil
}

func (s *Sessions) release(ctx context.Context, tenantID, sessionID string, claimed bool) {
	if !claimed {
		return
	}
	if err := s.store.ReleaseCheckoutClaim(ctx, tenantID, sessionID, s.now()); err != nil {
		s.log.Warn().Err(err).Str("checkout_session_id", sessionID).Msg("release claim failed")
	}
}

func (s *Sessions) count(result string) {
	metrics.CheckoutStarts.WithLabelValues(result).Inc()
}

func debounceKey(staff models.StaffIdentity) string {
	if staff.UserID != "" {
		return staff.UserID
	}
	return staff.StaffID
}

func lineItems(items []models.CheckoutLineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		name := ""
		if item.Description != nil {
			name = strings.TrimSpace(*item.Description)
		}
		if name == "" {
			switch item.ItemType {
			case models.LineItemService:
				name = "Service"
			case models.LineItemProduct:
				name = "Product"
			default:
				name = "Tip"
			}
		}
		out = append(out, LineItem{Name: name, UnitAmountCents: item.UnitPriceCents, Quantity: item.Quantity})
	}
	return out
}
