// Package checkin resolves kiosk guests to today's booking and moves that
// booking to checked_in. All race handling is delegated to the store's
// conditional update; a caller that loses the race reports the winner's row.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salon/kiosk-service/internal/metrics"
	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/normalize"
	"salon/kiosk-service/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidInput       = errors.New("invalid check-in input")
	ErrBookingNotEligible = errors.New("booking not found or not eligible")
	ErrTransitionFailed   = errors.New("check-in transition failed")
)

type MatchInput struct {
	TenantID string
	Phone    string
	LastName string
}

type ConfirmInput struct {
	TenantID  string
	BookingID string
}

type WalkInInput struct {
	TenantID  string
	FirstName string
	LastName  string
	Phone     string
	Email     string
}

type Options struct {
	DefaultTimezone string
	CountryCode     string
	Now             func() time.Time
	Logger          zerolog.Logger
}

type Engine struct {
	store           store.CheckInStore
	defaultTimezone string
	countryCode     string
	now             func() time.Time
	log             zerolog.Logger
}

func NewEngine(st store.CheckInStore, options Options) *Engine {
	tz := options.DefaultTimezone
	if tz == "" {
		tz = normalize.DefaultTimezone
	}
	cc := options.CountryCode
	if cc == "" {
		cc = normalize.DefaultCountryCode
	}
	now := options.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		store:           st,
		defaultTimezone: tz,
		countryCode:     cc,
		now:             now,
		log:             options.Logger.With().Str("ctx", "checkin").Logger(),
	}
}

// CheckIn runs the phone + last name flow.
func (e *Engine) CheckIn(ctx context.Context, input MatchInput) (Outcome, error) {
	tenantID := strings.TrimSpace(input.TenantID)
	if tenantID == "" || strings.TrimSpace(input.LastName) == "" {
		return Outcome{}, ErrInvalidInput
	}
	phone, err := normalize.PhoneWithCountry(input.Phone, e.countryCode)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	lastName := normalize.LastName(input.LastName)

	customers, err := e.store.FindCustomers(ctx, tenantID, phone, lastName)
	if err != nil {
		return Outcome{}, fmt.Errorf("find customers: %w", err)
	}
	switch {
	case len(customers) == 0:
		return e.noCustomer(tenantID, ReasonNotFound), nil
	case len(customers) > 1:
		return e.noCustomer(tenantID, ReasonAmbiguous), nil
	}
	customer := customers[0]

	start, end, err := e.today(ctx, tenantID)
	if err != nil {
		return Outcome{}, err
	}
	bookings, err := e.store.ListBookings(ctx, store.BookingQuery{
		TenantID:   tenantID,
		CustomerID: customer.CustomerID,
		From:       start,
		To:         end,
		Statuses:   models.CheckInEligibleStatuses,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("list bookings: %w", err)
	}

	switch len(bookings) {
	case 0:
		e.record(StatusNoBookingToday, "")
		e.log.Info().Str("tenant_id", tenantID).Str("customer_id", customer.CustomerID).Str("result", string(StatusNoBookingToday)).Msg("check-in")
		return Outcome{Status: StatusNoBookingToday}, nil
	case 1:
		return e.resolve(ctx, tenantID, bookings[0])
	default:
		enriched, err := e.enrich(ctx, tenantID, bookings)
		if err != nil {
			return Outcome{}, err
		}
		e.record(StatusMultiple, "")
		e.log.Info().Str("tenant_id", tenantID).Str("customer_id", customer.CustomerID).Int("bookings", len(bookings)).Str("result", string(StatusMultiple)).Msg("check-in")
		return Outcome{Status: StatusMultiple, Bookings: enriched}, nil
	}
}

// Confirm checks in a booking the guest picked after a MULTIPLE outcome.
func (e *Engine) Confirm(ctx context.Context, input ConfirmInput) (Outcome, error) {
	tenantID := strings.TrimSpace(input.TenantID)
	bookingID := strings.TrimSpace(input.BookingID)
	if tenantID == "" || bookingID == "" {
		return Outcome{}, ErrInvalidInput
	}

	booking, err := e.store.GetBooking(ctx, tenantID, bookingID)
	if err != nil {
		if errors.Is(err, store.ErrBookingNotFound) {
			return Outcome{}, ErrBookingNotEligible
		}
		return Outcome{}, fmt.Errorf("get booking: %w", err)
	}

	start, end, err := e.today(ctx, tenantID)
	if err != nil {
		return Outcome{}, err
	}
	if booking.TenantID != "" && booking.TenantID != tenantID {
		return Outcome{}, ErrBookingNotEligible
	}
	if booking.StartTime.Before(start) || booking.StartTime.After(end) {
		return Outcome{}, ErrBookingNotEligible
	}
	if booking.Status != models.BookingScheduled && booking.Status != models.BookingCheckedIn {
		return Outcome{}, ErrBookingNotEligible
	}
	return e.resolve(ctx, tenantID, booking)
}

// WalkIn records a visit without a booking, creating the customer on first
// contact.
func (e *Engine) WalkIn(ctx context.Context, input WalkInInput) (WalkInResult, error) {
	tenantID := strings.TrimSpace(input.TenantID)
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if tenantID == "" || firstName == "" || lastName == "" {
		return WalkInResult{}, ErrInvalidInput
	}
	phone, err := normalize.PhoneWithCountry(input.Phone, e.countryCode)
	if err != nil {
		return WalkInResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	customer, created, err := e.store.FindOrCreateCustomer(ctx, store.NewCustomer{
		TenantID:        tenantID,
		FirstName:       firstName,
		LastName:        lastName,
		Phone:           strings.TrimSpace(input.Phone),
		PhoneNormalized: phone,
		Email:           strings.TrimSpace(input.Email),
	})
	if err != nil {
		return WalkInResult{}, fmt.Errorf("find or create customer: %w", err)
	}

	visit, err := e.store.InsertVisit(ctx, store.NewVisit{
		TenantID:    tenantID,
		CustomerID:  customer.CustomerID,
		VisitSource: models.VisitSourceKioskWalkin,
		CheckedInAt: e.now(),
	})
	if err != nil {
		return WalkInResult{}, fmt.Errorf("insert visit: %w", err)
	}

	metrics.WalkIns.WithLabelValues(boolLabel(created)).Inc()
	e.log.Info().
		Str("tenant_id", tenantID).
		Str("customer_id", customer.CustomerID).
		Str("visit_id", visit.VisitID).
		Bool("customer_created", created).
		Str("result", "walk_in").
		Msg("check-in")

	return WalkInResult{
		Success:         true,
		VisitID:         visit.VisitID,
		CustomerID:      customer.CustomerID,
		CheckedInAt:     visit.CheckedInAt,
		CustomerCreated: created,
	}, nil
}

func (e *Engine) resolve(ctx context.Context, tenantID string, booking models.Booking) (Outcome, error) {
	transitioned := false
	switch {
	case booking.Status == models.BookingCheckedIn:
	case store.ValidBookingTransition(store.ActionCheckIn, booking.Status):
		updated, applied, err := e.transition(ctx, tenantID, booking.BookingID)
		if err != nil {
			return Outcome{}, err
		}
		booking = updated
		transitioned = applied
	default:
		return Outcome{}, fmt.Errorf("%w: booking %s is %s", ErrTransitionFailed, booking.BookingID, booking.Status)
	}

	enriched, err := e.enrich(ctx, tenantID, []models.Booking{booking})
	if err != nil {
		return Outcome{}, err
	}
	e.record(StatusCheckedIn, "")
	e.log.Info().
		Str("tenant_id", tenantID).
		Str("booking_id", booking.BookingID).
		Bool("transitioned", transitioned).
		Str("result", string(StatusCheckedIn)).
		Msg("check-in")
	return Outcome{Status: StatusCheckedIn, Booking: &enriched[0], Transitioned: transitioned}, nil
}

// transition is the compare-and-swap scheduled -> checked_in. Losing the
// race to another caller that already checked the booking in is a success.
func (e *Engine) transition(ctx context.Context, tenantID, bookingID string) (models.Booking, bool, error) {
	at := e.now()
	updated, applied, err := e.store.MarkBookingCheckedIn(ctx, tenantID, bookingID, at)
	if err != nil {
		return models.Booking{}, false, fmt.Errorf("%w: %v", ErrTransitionFailed, err)
	}
	if applied {
		e.recordBookingVisit(ctx, tenantID, updated)
		return updated, true, nil
	}

	current, err := e.store.GetBooking(ctx, tenantID, bookingID)
	if err != nil {
		return models.Booking{}, false, fmt.Errorf("%w: re-read: %v", ErrTransitionFailed, err)
	}
	if current.Status != models.BookingCheckedIn {
		return models.Booking{}, false, fmt.Errorf("%w: booking %s is %s", ErrTransitionFailed, bookingID, current.Status)
	}
	metrics.CheckInRaces.Inc()
	e.log.Info().Str("tenant_id", tenantID).Str("booking_id", bookingID).Str("phase", "race_lost").Msg("check-in")
	return current, false, nil
}

// recordBookingVisit is best effort: the booking is already checked in and
// the visits table refuses a second row for the same booking.
func (e *Engine) recordBookingVisit(ctx context.Context, tenantID string, booking models.Booking) {
	checkedInAt := e.now()
	if booking.CheckedInAt != nil {
		checkedInAt = *booking.CheckedInAt
	}
	_, err := e.store.InsertVisit(ctx, store.NewVisit{
		TenantID:    tenantID,
		BookingID:   booking.BookingID,
		CustomerID:  booking.CustomerID,
		VisitSource: models.VisitSourcePhorestBooking,
		CheckedInAt: checkedInAt,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateVisit) {
		e.log.Warn().Err(err).Str("tenant_id", tenantID).Str("booking_id", booking.BookingID).Msg("visit insert failed")
	}
}

func (e *Engine) enrich(ctx context.Context, tenantID string, bookings []models.Booking) ([]EnrichedBooking, error) {
	serviceIDs := distinct(len(bookings), func(i int) string { return bookings[i].ServiceID })
	stylistIDs := distinct(len(bookings), func(i int) string {
		if bookings[i].StylistID == nil {
			return ""
		}
		return *bookings[i].StylistID
	})

	var services, stylists map[string]string
	group, gctx := errgroup.WithContext(ctx)
	if len(serviceIDs) > 0 {
		group.Go(func() error {
			var err error
			services, err = e.store.ServiceNames(gctx, tenantID, serviceIDs)
			return err
		})
	}
	if len(stylistIDs) > 0 {
		group.Go(func() error {
			var err error
			stylists, err = e.store.StylistNames(gctx, tenantID, stylistIDs)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("enrich bookings: %w", err)
	}

	out := make([]EnrichedBooking, 0, len(bookings))
	for _, b := range bookings {
		item := EnrichedBooking{
			ID:          b.BookingID,
			StartTime:   b.StartTime,
			EndTime:     b.EndTime,
			Status:      b.Status,
			ServiceID:   b.ServiceID,
			ServiceName: services[b.ServiceID],
			StylistID:   b.StylistID,
			CheckedInAt: b.CheckedInAt,
		}
		if b.StylistID != nil {
			if name, ok := stylists[*b.StylistID]; ok {
				item.StylistName = &name
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (e *Engine) today(ctx context.Context, tenantID string) (time.Time, time.Time, error) {
	tz, err := e.store.TenantTimezone(ctx, tenantID)
	if err != nil && !errors.Is(err, store.ErrTenantNotFound) {
		return time.Time{}, time.Time{}, fmt.Errorf("tenant timezone: %w", err)
	}
	start, end := normalize.DayRangeIn(normalize.LoadTimezone(tz, e.defaultTimezone), e.now())
	return start, end, nil
}

func (e *Engine) noCustomer(tenantID, reason string) Outcome {
	e.record(StatusNoCustomer, reason)
	e.log.Info().Str("tenant_id", tenantID).Str("reason", reason).Str("result", string(StatusNoCustomer)).Msg("check-in")
	return Outcome{Status: StatusNoCustomer, Reason: reason}
}

func (e *Engine) record(status Status, reason string) {
	metrics.CheckInOutcomes.WithLabelValues(string(status), reason).Inc()
}

func distinct(n int, value func(int) string) []string {
	seen := make(map[string]struct{}, n)
	var out []string
	for i := 0; i < n; i++ {
		v := value(i)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
