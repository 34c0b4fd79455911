package models

import "time"

type BookingRequest struct {
	RequestID            string    `json:"id"`
	TenantID             string    `json:"salon_id,omitempty"`
	Name                 string    `json:"name"`
	Phone                string    `json:"phone"`
	Email                *string   `json:"email,omitempty"`
	ServiceInterest      *string   `json:"service_interest,omitempty"`
	PreferredWindow      string    `json:"preferred_window"`
	Notes                *string   `json:"notes,omitempty"`
	StaffNote            *string   `json:"staff_note"`
	PhorestAppointmentID *string   `json:"phorest_appointment_id"`
	Status               string    `json:"status"`
	RequestSource        string    `json:"request_source"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

const (
	RequestNew                = "new"
	RequestInProgress         = "in_progress"
	RequestScheduledInPhorest = "scheduled_in_phorest"
	RequestClosed             = "closed"
)

const (
	RequestSourceKiosk       = "kiosk"
	RequestSourceWeb         = "web"
	RequestSourceStaffManual = "staff_manual"
)
