package postgres

import (
	"context"
	"time"

	"salon/kiosk-service/internal/store"
)

// ListVisits joins each visit to its customer and booking for the front
// desk board. Walk-ins report status "walk_in".
func (s *Store) ListVisits(ctx context.Context, tenantID string, from, to time.Time) ([]store.VisitSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.visit_id,
			COALESCE(NULLIF(TRIM(COALESCE(c.first_name, '') || ' ' || COALESCE(c.last_name, '')), ''), 'Guest'),
			COALESCE(b.status, 'walk_in'),
			v.visit_source,
			v.checked_in_at,
			v.completed_at,
			v.created_at
		FROM visits v
		LEFT JOIN customers c ON c.customer_id = v.customer_id
		LEFT JOIN bookings b ON b.booking_id = v.booking_id
		WHERE v.salon_id = $1 AND v.checked_in_at >= $2 AND v.checked_in_at <= $3
		ORDER BY v.checked_in_at DESC
	`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []store.VisitSummary
	for rows.Next() {
		var v store.VisitSummary
		if err := rows.Scan(&v.VisitID, &v.Name, &v.Status, &v.Source, &v.CheckedInAt, &v.CompletedAt, &v.CreatedAt); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}
