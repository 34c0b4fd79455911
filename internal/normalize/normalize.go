// Package normalize holds the canonical forms used to match kiosk input
// against stored customers, and the tenant-local day window used to scope
// "today" queries.
package normalize

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	MinPhoneDigits     = 10
	DefaultCountryCode = "1"
	DefaultTimezone    = "America/Detroit"
)

var (
	ErrInvalidPhone    = errors.New("phone number too short")
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// Phone returns the E.164-like canonical form of raw using the default
// country code.
func Phone(raw string) (string, error) {
	return PhoneWithCountry(raw, DefaultCountryCode)
}

// PhoneWithCountry strips everything but digits. Ten digits get the country
// code prepended; longer numbers are assumed to already carry one.
func PhoneWithCountry(raw, countryCode string) (string, error) {
	digits := digitsOnly(raw)
	if len(digits) < MinPhoneDigits {
		return "", ErrInvalidPhone
	}
	cc := digitsOnly(countryCode)
	if cc == "" {
		cc = DefaultCountryCode
	}
	if len(digits) == MinPhoneDigits {
		return "+" + cc + digits, nil
	}
	return "+" + digits, nil
}

func LastName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LoadTimezone resolves name, falling back when it is empty or unknown.
func LoadTimezone(name, fallback string) *time.Location {
	if name = strings.TrimSpace(name); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if fallback == "" {
		fallback = DefaultTimezone
	}
	loc, err := time.LoadLocation(fallback)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayRange returns the first and last instant (millisecond precision) of the
// calendar day containing ref in timezone, both in UTC. Offsets come from
// the zone database at each boundary, so DST days are 23 or 25 hours long.
func DayRange(timezone string, ref time.Time) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(timezone))
	if err != nil || strings.TrimSpace(timezone) == "" {
		return time.Time{}, time.Time{}, ErrInvalidTimezone
	}
	start, end := DayRangeIn(loc, ref)
	return start, end, nil
}

func DayRangeIn(loc *time.Location, ref time.Time) (time.Time, time.Time) {
	local := ref.In(loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
	return start.UTC(), end.UTC()
}
