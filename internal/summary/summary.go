package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/normalize"
	"salon/kiosk-service/internal/store"
)

const maxPaymentRows = 10

type BookingRequestRow struct {
	RequestID       string    `json:"id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	RequestSource   string    `json:"request_source"`
	PreferredWindow string    `json:"preferred_window"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type PaymentRow struct {
	SessionID   string     `json:"id"`
	TotalCents  int64      `json:"total_cents"`
	Status      string     `json:"status"`
	CustomerID  string     `json:"customer_id"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Payments struct {
	TotalCents int64        `json:"total_cents"`
	Count      int          `json:"count"`
	Rows       []PaymentRow `json:"rows"`
}

// Today is the front desk dashboard for one salon day.
type Today struct {
	Timezone        string               `json:"timezone"`
	Start           time.Time            `json:"start"`
	End             time.Time            `json:"end"`
	FetchedAt       time.Time            `json:"fetchedAt"`
	Visits          []store.VisitSummary `json:"visits"`
	BookingRequests []BookingRequestRow  `json:"bookingRequests"`
	Payments        Payments             `json:"payments"`
}

type Builder struct {
	store           store.TodaySummaryStore
	defaultTimezone string
	now             func() time.Time
}

func NewBuilder(st store.TodaySummaryStore, defaultTimezone string, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{store: st, defaultTimezone: defaultTimezone, now: now}
}

func (b *Builder) Today(ctx context.Context, tenantID string) (Today, error) {
	tz, err := b.store.TenantTimezone(ctx, tenantID)
	if err != nil && !errors.Is(err, store.ErrTenantNotFound) {
		return Today{}, fmt.Errorf("tenant timezone: %w", err)
	}
	loc := normalize.LoadTimezone(tz, b.defaultTimezone)
	now := b.now()
	start, end := normalize.DayRangeIn(loc, now)

	var (
		visits   []store.VisitSummary
		requests []models.BookingRequest
		payments []models.CheckoutSession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		visits, err = b.store.ListVisits(gctx, tenantID, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		requests, err = b.store.ListBookingRequestsCreated(gctx, tenantID, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = b.store.ListCompletedCheckouts(gctx, tenantID, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return Today{}, err
	}

	out := Today{
		Timezone:        loc.String(),
		Start:           start,
		End:             end,
		FetchedAt:       now.UTC(),
		Visits:          visits,
		BookingRequests: make([]BookingRequestRow, 0, len(requests)),
		Payments:        Payments{Rows: []PaymentRow{}},
	}
	if out.Visits == nil {
		out.Visits = []store.VisitSummary{}
	}
	for _, r := range requests {
		out.BookingRequests = append(out.BookingRequests, BookingRequestRow{
			RequestID:       r.RequestID,
			Name:            r.Name,
			Status:          r.Status,
			RequestSource:   r.RequestSource,
			PreferredWindow: r.PreferredWindow,
			CreatedAt:       r.CreatedAt,
			UpdatedAt:       r.UpdatedAt,
		})
	}
	// Totals cover the whole day; only the latest rows are listed.
	for i, p := range payments {
		out.Payments.TotalCents += p.TotalCents
		out.Payments.Count++
		if i < maxPaymentRows {
			out.Payments.Rows = append(out.Payments.Rows, PaymentRow{
				SessionID:   p.SessionID,
				TotalCents:  p.TotalCents,
				Status:      p.Status,
				CustomerID:  p.CustomerID,
				CompletedAt: p.CompletedAt,
				CreatedAt:   p.CreatedAt,
			})
		}
	}
	return out, nil
}
