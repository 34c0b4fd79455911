package models

import "time"

type Visit struct {
	VisitID     string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	BookingID   *string    `json:"booking_id"`
	CustomerID  *string    `json:"customer_id,omitempty"`
	VisitSource string     `json:"visit_source"`
	CheckedInAt time.Time  `json:"checked_in_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

const (
	VisitSourceKioskWalkin    = "kiosk_walkin"
	VisitSourcePhorestBooking = "phorest_booking"
	VisitSourceStaffManual    = "staff_manual"
)
