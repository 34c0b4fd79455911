package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/store"

	"github.com/jackc/pgx/v5"
)

const customerColumns = `customer_id, salon_id, first_name, last_name, phone, phone_normalized, email, created_at`

const bookingColumns = `booking_id, salon_id, customer_id, stylist_id, service_id, start_time, end_time, status, checked_in_at`

const visitColumns = `visit_id, salon_id, booking_id, customer_id, visit_source, checked_in_at, completed_at, created_at`

func scanCustomer(row pgx.Row) (models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.CustomerID, &c.TenantID, &c.FirstName, &c.LastName, &c.Phone, &c.PhoneNormalized, &c.Email, &c.CreatedAt)
	return c, err
}

func scanBooking(row pgx.Row) (models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.BookingID, &b.TenantID, &b.CustomerID, &b.StylistID, &b.ServiceID, &b.StartTime, &b.EndTime, &b.Status, &b.CheckedInAt)
	return b, err
}

func scanVisit(row pgx.Row) (models.Visit, error) {
	var v models.Visit
	err := row.Scan(&v.VisitID, &v.TenantID, &v.BookingID, &v.CustomerID, &v.VisitSource, &v.CheckedInAt, &v.CompletedAt, &v.CreatedAt)
	return v, err
}

func (s *Store) FindCustomers(ctx context.Context, tenantID, phoneNormalized, lastName string) ([]models.Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE salon_id = $1 AND phone_normalized = $2 AND lower(last_name) = $3
		ORDER BY created_at ASC
		LIMIT 10
	`, tenantID, phoneNormalized, lastName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// FindOrCreateCustomer serializes on (tenant, phone, last name) so two
// simultaneous walk-ins for the same guest produce one customer row.
func (s *Store) FindOrCreateCustomer(ctx context.Context, input store.NewCustomer) (models.Customer, bool, error) {
	var customer models.Customer
	created := false
	lastName := strings.ToLower(strings.TrimSpace(input.LastName))
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		lockKey := input.TenantID + "|" + input.PhoneNormalized + "|" + lastName
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return err
		}

		existing, err := scanCustomer(tx.QueryRow(ctx, `
			SELECT `+customerColumns+`
			FROM customers
			WHERE salon_id = $1 AND phone_normalized = $2 AND lower(last_name) = $3
			ORDER BY created_at ASC
			LIMIT 1
		`, input.TenantID, input.PhoneNormalized, lastName))
		if err == nil {
			customer = existing
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		customer, err = scanCustomer(tx.QueryRow(ctx, `
			INSERT INTO customers (salon_id, first_name, last_name, phone, phone_normalized, email)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+customerColumns,
			input.TenantID, input.FirstName, input.LastName, input.Phone, input.PhoneNormalized, nullIfEmpty(input.Email)))
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return models.Customer{}, false, err
	}
	return customer, created, nil
}

func (s *Store) ListBookings(ctx context.Context, query store.BookingQuery) ([]models.Booking, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE salon_id = $1 AND customer_id = $2
			AND start_time >= $3 AND start_time <= $4
			AND status = ANY($5)
		ORDER BY start_time ASC
	`, query.TenantID, query.CustomerID, query.From, query.To, query.Statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (s *Store) GetBooking(ctx context.Context, tenantID, bookingID string) (models.Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE booking_id = $1 AND salon_id = $2
	`, bookingID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Booking{}, store.ErrBookingNotFound
		}
		return models.Booking{}, err
	}
	return b, nil
}

// MarkBookingCheckedIn is the compare-and-swap scheduled -> checked_in. A
// miss is reported as applied=false with no error; the caller re-reads.
func (s *Store) MarkBookingCheckedIn(ctx context.Context, tenantID, bookingID string, at time.Time) (models.Booking, bool, error) {
	var booking models.Booking
	applied := false
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		booking, err = scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings
			SET status = $1, checked_in_at = $2, updated_at = $2
			WHERE booking_id = $3 AND salon_id = $4 AND status = $5
			RETURNING `+bookingColumns,
			models.BookingCheckedIn, at, bookingID, tenantID, models.BookingScheduled))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		applied = true
		return insertOutboxEvent(ctx, tx, tenantID, "checkin.completed", booking.BookingID, map[string]interface{}{
			"booking_id":    booking.BookingID,
			"salon_id":      booking.TenantID,
			"customer_id":   booking.CustomerID,
			"service_id":    booking.ServiceID,
			"stylist_id":    booking.StylistID,
			"start_time":    booking.StartTime,
			"status":        booking.Status,
			"checked_in_at": booking.CheckedInAt,
		})
	})
	if err != nil {
		return models.Booking{}, false, err
	}
	return booking, applied, nil
}

// InsertVisit relies on the partial unique index on visits.booking_id.
func (s *Store) InsertVisit(ctx context.Context, input store.NewVisit) (models.Visit, error) {
	var visit models.Visit
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		visit, err = scanVisit(tx.QueryRow(ctx, `
			INSERT INTO visits (salon_id, booking_id, customer_id, visit_source, checked_in_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (booking_id) WHERE booking_id IS NOT NULL DO NOTHING
			RETURNING `+visitColumns,
			input.TenantID, nullIfEmpty(input.BookingID), nullIfEmpty(input.CustomerID), input.VisitSource, input.CheckedInAt))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.ErrDuplicateVisit
			}
			return err
		}
		if input.VisitSource != models.VisitSourceKioskWalkin {
			return nil
		}
		return insertOutboxEvent(ctx, tx, input.TenantID, "walkin.created", visit.VisitID, map[string]interface{}{
			"visit_id":      visit.VisitID,
			"salon_id":      visit.TenantID,
			"customer_id":   visit.CustomerID,
			"visit_source":  visit.VisitSource,
			"checked_in_at": visit.CheckedInAt,
		})
	})
	if err != nil {
		return models.Visit{}, err
	}
	return visit, nil
}

func (s *Store) ServiceNames(ctx context.Context, tenantID string, serviceIDs []string) (map[string]string, error) {
	return s.names(ctx, `SELECT service_id, name FROM services WHERE salon_id = $1 AND service_id = ANY($2::uuid[])`, tenantID, serviceIDs)
}

func (s *Store) StylistNames(ctx context.Context, tenantID string, stylistIDs []string) (map[string]string, error) {
	return s.names(ctx, `SELECT stylist_id, name FROM stylists WHERE salon_id = $1 AND stylist_id = ANY($2::uuid[])`, tenantID, stylistIDs)
}

func (s *Store) names(ctx context.Context, query, tenantID string, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, query, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}
