package postgres

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/store"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/sha3"
)

const sessionTokenBytes = 32

// HashSessionToken is the only form in which a bearer token is stored.
func HashSessionToken(token string) string {
	sum := sha3.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

func (s *Store) GetStaffSession(ctx context.Context, token string) (models.StaffIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return models.StaffIdentity{}, store.ErrSessionNotFound
	}
	var identity models.StaffIdentity
	row := s.pool.QueryRow(ctx, `
		SELECT s.session_id, u.user_id, u.staff_id, u.salon_id, u.role, s.expires_at
		FROM staff_sessions s
		JOIN staff_users u ON u.user_id = s.user_id
		WHERE s.token_hash = $1 AND s.expires_at > NOW() AND s.revoked_at IS NULL
	`, HashSessionToken(token))
	if err := row.Scan(&identity.SessionID, &identity.UserID, &identity.StaffID, &identity.TenantID, &identity.Role, &identity.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.StaffIdentity{}, store.ErrSessionNotFound
		}
		return models.StaffIdentity{}, err
	}
	return identity, nil
}

// CreateStaffSession issues a new opaque token for the user and returns it
// in clear. Only its hash is persisted.
func (s *Store) CreateStaffSession(ctx context.Context, userID string, expiresAt time.Time) (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO staff_sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, HashSessionToken(token), expiresAt)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) RevokeStaffSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE staff_sessions SET revoked_at = NOW()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, HashSessionToken(token))
	return err
}
