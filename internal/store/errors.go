package store

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrSessionNotFound = errors.New("session not found")
	ErrDuplicateVisit  = errors.New("visit already recorded for booking")
)
