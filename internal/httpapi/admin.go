package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"salon/kiosk-service/internal/store"
)

type auditResponse struct {
	EntityID string              `json:"entityId"`
	Events   []store.EntityEvent `json:"events"`
	Intact   bool                `json:"intact"`
	BrokenAt int                 `json:"brokenAt,omitempty"`
}

func (h *Handler) handleToday(w http.ResponseWriter, r *http.Request) {
	staff, _ := staffFromContext(r.Context())
	today, err := h.summary.Today(r.Context(), staff.TenantID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, today)
}

// handleAudit returns the status history of a booking, booking request or
// checkout session together with a chain verification result.
func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	staff, _ := staffFromContext(r.Context())
	entityID := strings.TrimSpace(chi.URLParam(r, "entityId"))
	if !isValidUUID(entityID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "entityId must be a UUID")
		return
	}

	events, err := h.audit.ListEntityEvents(r.Context(), staff.TenantID, entityID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if len(events) == 0 {
		writeError(w, requestIDFromRequest(r), http.StatusNotFound, "not_found", "not found")
		return
	}
	broken := store.VerifyEntityChain(events)
	writeJSON(w, http.StatusOK, auditResponse{
		EntityID: entityID,
		Events:   events,
		Intact:   broken == 0,
		BrokenAt: broken,
	})
}
