package httpapi

import (
	"net/http"
	"strings"
	"time"

	"salon/kiosk-service/internal/checkin"
)

type checkInRequest struct {
	TenantID string `json:"tenantId"`
	Phone    string `json:"phone"`
	LastName string `json:"lastName"`
}

type confirmRequest struct {
	TenantID  string `json:"tenantId"`
	BookingID string `json:"bookingId"`
}

type walkInRequest struct {
	TenantID  string `json:"tenantId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

type walkInResponse struct {
	Success     bool      `json:"success"`
	VisitID     string    `json:"visitId"`
	CheckedInAt time.Time `json:"checkedInAt"`
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", kioskGenericMessage)
		return
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	if !isValidUUID(req.TenantID) || strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.LastName) == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", kioskGenericMessage)
		return
	}

	outcome, err := h.checkIn.CheckIn(r.Context(), checkin.MatchInput{
		TenantID: req.TenantID,
		Phone:    req.Phone,
		LastName: req.LastName,
	})
	if err != nil {
		h.writeKioskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", kioskGenericMessage)
		return
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.BookingID = strings.TrimSpace(req.BookingID)
	if !isValidUUID(req.TenantID) || !isValidUUID(req.BookingID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", kioskGenericMessage)
		return
	}

	outcome, err := h.checkIn.Confirm(r.Context(), checkin.ConfirmInput{
		TenantID:  req.TenantID,
		BookingID: req.BookingID,
	})
	if err != nil {
		h.writeKioskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleWalkIn(w http.ResponseWriter, r *http.Request) {
	var req walkInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", kioskGenericMessage)
		return
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	if !isValidUUID(req.TenantID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", kioskGenericMessage)
		return
	}

	result, err := h.checkIn.WalkIn(r.Context(), checkin.WalkInInput{
		TenantID:  req.TenantID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
	})
	if err != nil {
		h.writeKioskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, walkInResponse{
		Success:     result.Success,
		VisitID:     result.VisitID,
		CheckedInAt: result.CheckedInAt,
	})
}
