package checkin

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusNoCustomer     Status = "NO_CUSTOMER"
	StatusNoBookingToday Status = "NO_BOOKING_TODAY"
	StatusMultiple       Status = "MULTIPLE"
	StatusCheckedIn      Status = "CHECKED_IN"
)

// Reasons attached to NO_CUSTOMER. They are logged and counted but never
// change the public status.
const (
	ReasonNotFound  = "not_found"
	ReasonAmbiguous = "ambiguous"
)

type EnrichedBooking struct {
	ID          string     `json:"id"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	Status      string     `json:"status"`
	ServiceID   string     `json:"serviceId"`
	ServiceName string     `json:"serviceName,omitempty"`
	StylistID   *string    `json:"stylistId"`
	StylistName *string    `json:"stylistName"`
	CheckedInAt *time.Time `json:"checkedInAt"`
}

// Outcome is a tagged union keyed by Status. Only the fields belonging to
// the variant are populated and serialized.
type Outcome struct {
	Status   Status
	Reason   string
	Bookings []EnrichedBooking
	Booking  *EnrichedBooking
	// Transitioned is true only for the caller whose write moved the booking.
	Transitioned bool
}

var outcomeMessages = map[Status]string{
	StatusNoCustomer:     "We couldn't find a matching profile.",
	StatusNoBookingToday: "We don't see a booking for today.",
}

const ambiguousMessage = "Multiple matching customers found; please see the front desk."

func (o Outcome) Message() string {
	if o.Status == StatusNoCustomer && o.Reason == ReasonAmbiguous {
		return ambiguousMessage
	}
	return outcomeMessages[o.Status]
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	switch o.Status {
	case StatusMultiple:
		return json.Marshal(struct {
			Status   Status            `json:"status"`
			Bookings []EnrichedBooking `json:"bookings"`
		}{o.Status, o.Bookings})
	case StatusCheckedIn:
		return json.Marshal(struct {
			Status  Status           `json:"status"`
			Booking *EnrichedBooking `json:"booking"`
		}{o.Status, o.Booking})
	default:
		return json.Marshal(struct {
			Status  Status `json:"status"`
			Message string `json:"message"`
		}{o.Status, o.Message()})
	}
}

type WalkInResult struct {
	Success         bool      `json:"success"`
	VisitID         string    `json:"visitId"`
	CustomerID      string    `json:"customerId"`
	CheckedInAt     time.Time `json:"checkedInAt"`
	CustomerCreated bool      `json:"-"`
}
