package bookingrequest

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"salon/kiosk-service/internal/metrics"
	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/normalize"
	"salon/kiosk-service/internal/store"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrInvalidPhone      = errors.New("invalid phone")
	ErrNoChanges         = errors.New("no changes supplied")
	ErrForbidden         = errors.New("booking request belongs to another tenant")
	ErrInvalidTransition = errors.New("booking request status cannot move backward")
)

const (
	minRawPhoneLength = 7
	defaultListLimit  = 100
	maxListLimit      = 500
)

type CreateInput struct {
	Name            string  `json:"name"`
	Phone           string  `json:"phone"`
	Email           *string `json:"email"`
	ServiceInterest *string `json:"serviceInterest"`
	PreferredWindow string  `json:"preferredWindow"`
	Notes           *string `json:"notes"`
}

type CreateResult struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Patch is a partial update. Absent fields are left alone; an explicit null
// clears a nullable field.
type Patch struct {
	Status               *string              `json:"status"`
	StaffNote            store.NullableString `json:"staffNote"`
	PhorestAppointmentID store.NullableString `json:"phorestAppointmentId"`
}

func (p Patch) empty() bool {
	return p.Status == nil && !p.StaffNote.Set && !p.PhorestAppointmentID.Set
}

type Manager struct {
	store       store.BookingRequestStore
	countryCode string
	now         func() time.Time
	log         zerolog.Logger
}

func NewManager(st store.BookingRequestStore, countryCode string, logger zerolog.Logger) *Manager {
	if countryCode == "" {
		countryCode = normalize.DefaultCountryCode
	}
	return &Manager{
		store:       st,
		countryCode: countryCode,
		now:         func() time.Time { return time.Now().UTC() },
		log:         logger.With().Str("ctx", "booking_requests").Logger(),
	}
}

// Create stores a kiosk-submitted request for the tenant the kiosk token
// is bound to.
func (m *Manager) Create(ctx context.Context, tenantID string, input CreateInput) (CreateResult, error) {
	name := strings.TrimSpace(input.Name)
	window := strings.TrimSpace(input.PreferredWindow)
	if tenantID == "" || name == "" || window == "" || len(input.Phone) < minRawPhoneLength {
		m.result("create", tenantID, "invalid_payload")
		return CreateResult{}, ErrInvalidPayload
	}
	email := trimmed(input.Email)
	if email != nil {
		if _, err := mail.ParseAddress(*email); err != nil {
			m.result("create", tenantID, "invalid_payload")
			return CreateResult{}, ErrInvalidPayload
		}
	}
	phone, err := normalize.PhoneWithCountry(input.Phone, m.countryCode)
	if err != nil {
		m.result("create", tenantID, "invalid_phone")
		return CreateResult{}, ErrInvalidPhone
	}

	created, err := m.store.CreateBookingRequest(ctx, store.NewBookingRequest{
		TenantID:        tenantID,
		Name:            name,
		Phone:           phone,
		Email:           email,
		ServiceInterest: trimmed(input.ServiceInterest),
		PreferredWindow: window,
		Notes:           trimmed(input.Notes),
		RequestSource:   models.RequestSourceKiosk,
		Status:          models.RequestNew,
	})
	if err != nil {
		m.log.Error().Err(err).Str("event", "create").Str("salon_id", tenantID).Str("result", "failure").Msg("booking request")
		metrics.BookingRequestOps.WithLabelValues("create", "failure").Inc()
		return CreateResult{}, fmt.Errorf("create booking request: %w", err)
	}

	m.log.Info().
		Str("event", "create").
		Str("booking_request_id", created.RequestID).
		Str("salon_id", tenantID).
		Str("status", created.Status).
		Str("result", "success").
		Msg("booking request")
	metrics.BookingRequestOps.WithLabelValues("create", "success").Inc()
	return CreateResult{ID: created.RequestID, Status: created.Status, CreatedAt: created.CreatedAt}, nil
}

// Update applies a staff patch. A request owned by another tenant is
// always ErrForbidden so the isolation boundary is observable.
func (m *Manager) Update(ctx context.Context, staff models.StaffIdentity, requestID string, patch Patch) (models.BookingRequest, error) {
	if patch.Status != nil && !store.ValidRequestStatus(*patch.Status) {
		return models.BookingRequest{}, ErrInvalidPayload
	}

	existing, err := m.store.GetBookingRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.BookingRequest{}, store.ErrNotFound
		}
		return models.BookingRequest{}, fmt.Errorf("load booking request: %w", err)
	}
	if existing.TenantID != staff.TenantID {
		m.result("update", staff.TenantID, "forbidden")
		return models.BookingRequest{}, ErrForbidden
	}
	if patch.empty() {
		return models.BookingRequest{}, ErrNoChanges
	}

	toStatus := existing.Status
	update := store.BookingRequestUpdate{
		RequestID:            requestID,
		TenantID:             staff.TenantID,
		StaffNote:            patch.StaffNote,
		PhorestAppointmentID: patch.PhorestAppointmentID,
		UpdatedAt:            m.now(),
	}
	if patch.Status != nil {
		toStatus = *patch.Status
		if !store.AllowRequestTransition(existing.Status, toStatus) {
			m.result("update", staff.TenantID, "invalid_transition")
			return models.BookingRequest{}, ErrInvalidTransition
		}
		update.Status = patch.Status
		update.FromStatuses = store.RequestPredecessors(toStatus)
	}

	updated, applied, err := m.store.UpdateBookingRequest(ctx, update)
	if err != nil {
		m.log.Error().Err(err).Str("event", "update").Str("booking_request_id", requestID).Str("salon_id", staff.TenantID).Str("result", "failure").Msg("booking request")
		metrics.BookingRequestOps.WithLabelValues("update", "failure").Inc()
		return models.BookingRequest{}, fmt.Errorf("update booking request: %w", err)
	}
	if !applied {
		// Another writer moved the request past the target status between
		// our read and the conditional write.
		current, err := m.store.GetBookingRequest(ctx, requestID)
		if err != nil {
			return models.BookingRequest{}, fmt.Errorf("re-read booking request: %w", err)
		}
		if current.TenantID != staff.TenantID {
			return models.BookingRequest{}, ErrForbidden
		}
		m.result("update", staff.TenantID, "invalid_transition")
		return models.BookingRequest{}, ErrInvalidTransition
	}

	m.log.Info().
		Str("event", "update").
		Str("booking_request_id", requestID).
		Str("salon_id", staff.TenantID).
		Str("from_status", existing.Status).
		Str("to_status", toStatus).
		Str("result", "success").
		Msg("booking request")
	metrics.BookingRequestOps.WithLabelValues("update", "success").Inc()
	return updated, nil
}

// List returns the tenant's requests newest first, optionally filtered by
// status.
func (m *Manager) List(ctx context.Context, tenantID, status string, limit int) ([]models.BookingRequest, error) {
	if status != "" && !store.ValidRequestStatus(status) {
		return nil, ErrInvalidPayload
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	items, err := m.store.ListBookingRequests(ctx, store.BookingRequestFilter{TenantID: tenantID, Status: status, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list booking requests: %w", err)
	}
	return items, nil
}

func (m *Manager) result(event, tenantID, result string) {
	m.log.Info().Str("event", event).Str("salon_id", tenantID).Str("result", result).Msg("booking request")
	metrics.BookingRequestOps.WithLabelValues(event, result).Inc()
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
