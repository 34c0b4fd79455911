package models

import "time"

type Booking struct {
	BookingID   string     `json:"id"`
	TenantID    string     `json:"tenant_id,omitempty"`
	CustomerID  string     `json:"customer_id,omitempty"`
	StylistID   *string    `json:"stylist_id,omitempty"`
	ServiceID   string     `json:"service_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Status      string     `json:"status"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

const (
	BookingScheduled = "scheduled"
	BookingCheckedIn = "checked_in"
	BookingInService = "in_service"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
	BookingNoShow    = "no_show"
)

// CheckInEligibleStatuses are the booking states a guest may check in from
// (or re-check in idempotently).
var CheckInEligibleStatuses = []string{BookingScheduled, BookingCheckedIn}
