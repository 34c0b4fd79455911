package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/store"

	"github.com/jackc/pgx/v5"
)

const bookingRequestColumns = `request_id, salon_id, name, phone, email, service_interest, preferred_window, notes,
	staff_note, phorest_appointment_id, status, request_source, created_at, updated_at`

func scanBookingRequest(row pgx.Row) (models.BookingRequest, error) {
	var r models.BookingRequest
	err := row.Scan(&r.RequestID, &r.TenantID, &r.Name, &r.Phone, &r.Email, &r.ServiceInterest, &r.PreferredWindow, &r.Notes,
		&r.StaffNote, &r.PhorestAppointmentID, &r.Status, &r.RequestSource, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *Store) CreateBookingRequest(ctx context.Context, input store.NewBookingRequest) (models.BookingRequest, error) {
	var request models.BookingRequest
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		request, err = scanBookingRequest(tx.QueryRow(ctx, `
			INSERT INTO booking_requests (salon_id, name, phone, email, service_interest, preferred_window, notes, status, request_source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+bookingRequestColumns,
			input.TenantID, input.Name, input.Phone, input.Email, input.ServiceInterest, input.PreferredWindow, input.Notes, input.Status, input.RequestSource))
		if err != nil {
			return err
		}
		return insertOutboxEvent(ctx, tx, input.TenantID, "booking_request.created", request.RequestID, map[string]interface{}{
			"booking_request_id": request.RequestID,
			"salon_id":           request.TenantID,
			"status":             request.Status,
			"request_source":     request.RequestSource,
			"preferred_window":   request.PreferredWindow,
			"created_at":         request.CreatedAt,
		})
	})
	if err != nil {
		return models.BookingRequest{}, err
	}
	return request, nil
}

func (s *Store) GetBookingRequest(ctx context.Context, requestID string) (models.BookingRequest, error) {
	request, err := scanBookingRequest(s.pool.QueryRow(ctx, `
		SELECT `+bookingRequestColumns+`
		FROM booking_requests
		WHERE request_id = $1
	`, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.BookingRequest{}, store.ErrNotFound
		}
		return models.BookingRequest{}, err
	}
	return request, nil
}

// UpdateBookingRequest is scoped by id and tenant, and by the allowed prior
// statuses when a status change is requested.
func (s *Store) UpdateBookingRequest(ctx context.Context, input store.BookingRequestUpdate) (models.BookingRequest, bool, error) {
	updatedAt := input.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	sets := []string{"updated_at = $1"}
	args := []interface{}{updatedAt}
	argPos := 2
	if input.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *input.Status)
		argPos++
	}
	if input.StaffNote.Set {
		sets = append(sets, fmt.Sprintf("staff_note = $%d", argPos))
		args = append(args, input.StaffNote.Value)
		argPos++
	}
	if input.PhorestAppointmentID.Set {
		sets = append(sets, fmt.Sprintf("phorest_appointment_id = $%d", argPos))
		args = append(args, input.PhorestAppointmentID.Value)
		argPos++
	}

	query := "UPDATE booking_requests SET " + strings.Join(sets, ", ") +
		fmt.Sprintf(" WHERE request_id = $%d AND salon_id = $%d", argPos, argPos+1)
	args = append(args, input.RequestID, input.TenantID)
	argPos += 2
	if len(input.FromStatuses) > 0 {
		query += fmt.Sprintf(" AND status = ANY($%d)", argPos)
		args = append(args, input.FromStatuses)
	}
	query += " RETURNING " + bookingRequestColumns

	var request models.BookingRequest
	applied := false
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		request, err = scanBookingRequest(tx.QueryRow(ctx, query, args...))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		applied = true
		return insertOutboxEvent(ctx, tx, input.TenantID, "booking_request.updated", request.RequestID, map[string]interface{}{
			"booking_request_id":     request.RequestID,
			"salon_id":               request.TenantID,
			"status":                 request.Status,
			"staff_note":             request.StaffNote,
			"phorest_appointment_id": request.PhorestAppointmentID,
			"updated_at":             request.UpdatedAt,
		})
	})
	if err != nil {
		return models.BookingRequest{}, false, err
	}
	return request, applied, nil
}

func (s *Store) ListBookingRequests(ctx context.Context, filter store.BookingRequestFilter) ([]models.BookingRequest, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + bookingRequestColumns + `
		FROM booking_requests
		WHERE salon_id = $1`
	args := []interface{}{filter.TenantID}
	if filter.Status != "" {
		query += " AND status = $2 ORDER BY created_at DESC LIMIT $3"
		args = append(args, filter.Status, limit)
	} else {
		query += " ORDER BY created_at DESC LIMIT $2"
		args = append(args, limit)
	}
	return s.queryBookingRequests(ctx, query, args...)
}

func (s *Store) ListBookingRequestsCreated(ctx context.Context, tenantID string, from, to time.Time) ([]models.BookingRequest, error) {
	return s.queryBookingRequests(ctx, `
		SELECT `+bookingRequestColumns+`
		FROM booking_requests
		WHERE salon_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC
	`, tenantID, from, to)
}

func (s *Store) queryBookingRequests(ctx context.Context, query string, args ...interface{}) ([]models.BookingRequest, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.BookingRequest
	for rows.Next() {
		r, err := scanBookingRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}
