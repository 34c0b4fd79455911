package store

import "salon/kiosk-service/internal/models"

// ActionCheckIn moves a booking to checked_in. The kiosk never drives the
// service lifecycle past that point.
const ActionCheckIn = "check_in"

var bookingTransitions = map[string][]string{
	ActionCheckIn: {models.BookingScheduled},
}

// ValidBookingTransition reports whether action may be applied to a booking
// currently in fromStatus.
func ValidBookingTransition(action, fromStatus string) bool {
	allowed, ok := bookingTransitions[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

var checkoutLattice = []string{
	models.CheckoutPending,
	models.CheckoutCompleted,
	models.CheckoutExpired,
	models.CheckoutCancelled,
	models.CheckoutFailed,
}

// AllowCheckoutTransition reports whether a webhook may move a session from
// current to next. Completed is terminal, otherwise states only move up the
// lattice. States outside the lattice (creating) are not ordered and any
// change is accepted.
func AllowCheckoutTransition(current, next string) bool {
	if current == next {
		return false
	}
	currentIdx := indexOf(checkoutLattice, current)
	nextIdx := indexOf(checkoutLattice, next)
	if currentIdx == -1 || nextIdx == -1 {
		return true
	}
	if current == models.CheckoutCompleted {
		return false
	}
	return nextIdx >= currentIdx
}

var requestStatuses = []string{
	models.RequestNew,
	models.RequestInProgress,
	models.RequestScheduledInPhorest,
	models.RequestClosed,
}

func ValidRequestStatus(status string) bool {
	return indexOf(requestStatuses, status) != -1
}

// AllowRequestTransition permits staying put or moving forward.
func AllowRequestTransition(current, next string) bool {
	currentIdx := indexOf(requestStatuses, current)
	nextIdx := indexOf(requestStatuses, next)
	if currentIdx == -1 || nextIdx == -1 {
		return false
	}
	return nextIdx >= currentIdx
}

// RequestPredecessors lists every status from which target is reachable,
// target included.
func RequestPredecessors(target string) []string {
	idx := indexOf(requestStatuses, target)
	if idx == -1 {
		return nil
	}
	out := make([]string, idx+1)
	copy(out, requestStatuses[:idx+1])
	return out
}

func indexOf(values []string, value string) int {
	for i, item := range values {
		if item == value {
			return i
		}
	}
	return -1
}
