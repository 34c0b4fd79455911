package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/store"
)

type staffContextKey struct{}
type kioskContextKey struct{}

// KioskAuth holds the shared kiosk secrets. Either the current or the
// rotated token is accepted.
type KioskAuth struct {
	Tokens   []string
	TenantID string
}

func (k KioskAuth) configured() bool {
	return k.TenantID != "" && len(k.Tokens) > 0 && k.Tokens[0] != ""
}

func (k KioskAuth) valid(presented string) bool {
	if presented == "" {
		return false
	}
	ok := 0
	for _, token := range k.Tokens {
		if token == "" {
			continue
		}
		ok |= subtle.ConstantTimeCompare([]byte(presented), []byte(token))
	}
	return ok == 1
}

func (h *Handler) requireKiosk(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.kiosk.configured() {
			h.log.Error().Msg("kiosk auth not configured")
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "kiosk_not_configured", "kiosk not configured")
			return
		}
		if !h.kiosk.valid(kioskTokenFromRequest(r)) {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "unauthorized kiosk")
			return
		}
		ctx := context.WithValue(r.Context(), kioskContextKey{}, h.kiosk.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func kioskTenantFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(kioskContextKey{}).(string)
	return tenantID
}

func kioskTokenFromRequest(r *http.Request) string {
	for _, header := range []string{"X-Kiosk-Token", "X-Kiosk-Auth"} {
		if value := strings.TrimSpace(r.Header.Get(header)); value != "" {
			return value
		}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token := bearerToken(header); token != "" {
		return token
	}
	return header
}

func (h *Handler) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionIDFromRequest(r)
		if token == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		staff, err := h.sessions.GetStaffSession(r.Context(), token)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			h.log.Error().Err(err).Msg("session lookup failed")
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if staff.TenantID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "no salon assigned")
			return
		}
		ctx := context.WithValue(r.Context(), staffContextKey{}, staff)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func staffFromContext(ctx context.Context) (models.StaffIdentity, bool) {
	staff, ok := ctx.Value(staffContextKey{}).(models.StaffIdentity)
	return staff, ok
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
