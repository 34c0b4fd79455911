package store

import (
	"context"
	"encoding/json"
	"time"

	"salon/kiosk-service/internal/models"
)

type BookingQuery struct {
	TenantID   string
	CustomerID string
	From       time.Time
	To         time.Time
	Statuses   []string
}

type NewCustomer struct {
	TenantID        string
	FirstName       string
	LastName        string
	Phone           string
	PhoneNormalized string
	Email           string
}

type NewVisit struct {
	TenantID    string
	BookingID   string
	CustomerID  string
	VisitSource string
	CheckedInAt time.Time
}

// CheckInStore is everything the check-in engine needs. Bookings are only
// ever moved to checked_in through MarkBookingCheckedIn.
type CheckInStore interface {
	TenantTimezone(ctx context.Context, tenantID string) (string, error)
	FindCustomers(ctx context.Context, tenantID, phoneNormalized, lastName string) ([]models.Customer, error)
	FindOrCreateCustomer(ctx context.Context, input NewCustomer) (models.Customer, bool, error)
	ListBookings(ctx context.Context, query BookingQuery) ([]models.Booking, error)
	GetBooking(ctx context.Context, tenantID, bookingID string) (models.Booking, error)
	// MarkBookingCheckedIn applies scheduled -> checked_in only if the row is
	// still scheduled. The bool reports whether this call performed the write.
	MarkBookingCheckedIn(ctx context.Context, tenantID, bookingID string, at time.Time) (models.Booking, bool, error)
	// InsertVisit returns ErrDuplicateVisit when a visit already exists for a
	// non-null booking id.
	InsertVisit(ctx context.Context, input NewVisit) (models.Visit, error)
	ServiceNames(ctx context.Context, tenantID string, serviceIDs []string) (map[string]string, error)
	StylistNames(ctx context.Context, tenantID string, stylistIDs []string) (map[string]string, error)
}

type NewBookingRequest struct {
	TenantID        string
	Name            string
	Phone           string
	Email           *string
	ServiceInterest *string
	PreferredWindow string
	Notes           *string
	RequestSource   string
	Status          string
}

// NullableString distinguishes "leave unchanged" (Set=false) from an explicit
// value or an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

type BookingRequestUpdate struct {
	RequestID string
	TenantID  string
	Status    *string
	// FromStatuses, when non-empty, restricts the update to rows currently
	// in one of these states.
	FromStatuses         []string
	StaffNote            NullableString
	PhorestAppointmentID NullableString
	UpdatedAt            time.Time
}

type BookingRequestFilter struct {
	TenantID string
	Status   string
	Limit    int
}

type BookingRequestStore interface {
	CreateBookingRequest(ctx context.Context, input NewBookingRequest) (models.BookingRequest, error)
	// GetBookingRequest is deliberately not tenant scoped so callers can tell
	// "exists elsewhere" from "does not exist".
	GetBookingRequest(ctx context.Context, requestID string) (models.BookingRequest, error)
	UpdateBookingRequest(ctx context.Context, input BookingRequestUpdate) (models.BookingRequest, bool, error)
	ListBookingRequests(ctx context.Context, filter BookingRequestFilter) ([]models.BookingRequest, error)
}

type CheckoutStatusUpdate struct {
	SessionID       string
	FromStatus      string
	ToStatus        string
	EventID         string
	EventType       string
	EventAt         time.Time
	PaymentIntentID string
}

type CheckoutStore interface {
	// ClaimCheckoutSession moves the session to creating only while it has no
	// external session id.
	ClaimCheckoutSession(ctx context.Context, tenantID, sessionID string, at time.Time) (models.CheckoutSession, bool, error)
	GetCheckoutSession(ctx context.Context, tenantID, sessionID string) (models.CheckoutSession, error)
	ReleaseCheckoutClaim(ctx context.Context, tenantID, sessionID string, at time.Time) error
	ListLineItems(ctx context.Context, sessionID string) ([]models.CheckoutLineItem, error)
	AttachExternalSession(ctx context.Context, tenantID, sessionID, externalID string, at time.Time) (models.CheckoutSession, error)

	WebhookEventExists(ctx context.Context, eventID string) (bool, error)
	// InsertWebhookEvent reports false when another delivery already claimed
	// the event id.
	InsertWebhookEvent(ctx context.Context, event models.WebhookEvent) (bool, error)
	// ReleaseWebhookEvent drops a ledger claim so a redelivery is processed.
	ReleaseWebhookEvent(ctx context.Context, eventID string) error
	FindCheckoutSession(ctx context.Context, sessionID string) (models.CheckoutSession, error)
	FindCheckoutSessionByExternalID(ctx context.Context, externalID string) (models.CheckoutSession, error)
	ApplyCheckoutStatus(ctx context.Context, input CheckoutStatusUpdate) (models.CheckoutSession, bool, error)
}

type SessionStore interface {
	GetStaffSession(ctx context.Context, token string) (models.StaffIdentity, error)
}

type TodaySummaryStore interface {
	TenantTimezone(ctx context.Context, tenantID string) (string, error)
	ListVisits(ctx context.Context, tenantID string, from, to time.Time) ([]VisitSummary, error)
	ListBookingRequestsCreated(ctx context.Context, tenantID string, from, to time.Time) ([]models.BookingRequest, error)
	ListCompletedCheckouts(ctx context.Context, tenantID string, from, to time.Time) ([]models.CheckoutSession, error)
}

type VisitSummary struct {
	VisitID     string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Source      string     `json:"source"`
	CheckedInAt time.Time  `json:"checked_in_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	TenantID  string          `json:"tenant_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// OutboxPublishFunc forwards a locked batch in order and reports how many
// leading events reached the broker.
type OutboxPublishFunc func(ctx context.Context, events []OutboxEvent) (int, error)

type OutboxStore interface {
	// RelayOutboxBatch locks up to limit unpublished events, oldest first,
	// and marks the ones publish accepted. Rows locked by another relay are
	// skipped; rows left unmarked are offered again on the next batch.
	RelayOutboxBatch(ctx context.Context, limit int, publish OutboxPublishFunc) (int, error)
}

// AuditStore reads the per-entity hash chain, scoped to one tenant.
type AuditStore interface {
	ListEntityEvents(ctx context.Context, tenantID, entityID string) ([]EntityEvent, error)
}

// UnmarshalJSON marks the field as present, including an explicit null.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	n.Value = &value
	return nil
}
