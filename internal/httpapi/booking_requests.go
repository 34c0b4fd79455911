package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"salon/kiosk-service/internal/bookingrequest"
	"salon/kiosk-service/internal/models"
)

type createBookingRequestResponse struct {
	BookingRequest bookingrequest.CreateResult `json:"bookingRequest"`
}

type updatedBookingRequest struct {
	ID                   string    `json:"id"`
	Status               string    `json:"status"`
	StaffNote            *string   `json:"staff_note"`
	PhorestAppointmentID *string   `json:"phorest_appointment_id"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type updateBookingRequestResponse struct {
	BookingRequest updatedBookingRequest `json:"bookingRequest"`
}

type listBookingRequestsResponse struct {
	BookingRequests []models.BookingRequest `json:"bookingRequests"`
}

func (h *Handler) handleCreateBookingRequest(w http.ResponseWriter, r *http.Request) {
	var input bookingrequest.CreateInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}

	result, err := h.requests.Create(r.Context(), kioskTenantFromContext(r.Context()), input)
	if err != nil {
		status, code, message := mapError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("request_id", requestIDFromRequest(r)).Msg("create booking request failed")
			message = "failed to create request"
		}
		writeError(w, requestIDFromRequest(r), status, code, message)
		return
	}
	writeJSON(w, http.StatusCreated, createBookingRequestResponse{BookingRequest: result})
}

func (h *Handler) handleUpdateBookingRequest(w http.ResponseWriter, r *http.Request) {
	staff, _ := staffFromContext(r.Context())
	requestID := strings.TrimSpace(chi.URLParam(r, "id"))
	if !isValidUUID(requestID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "id must be a UUID")
		return
	}

	var patch bookingrequest.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}

	updated, err := h.requests.Update(r.Context(), staff, requestID, patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateBookingRequestResponse{BookingRequest: updatedBookingRequest{
		ID:                   updated.RequestID,
		Status:               updated.Status,
		StaffNote:            updated.StaffNote,
		PhorestAppointmentID: updated.PhorestAppointmentID,
		UpdatedAt:            updated.UpdatedAt,
	}})
}

func (h *Handler) handleListBookingRequests(w http.ResponseWriter, r *http.Request) {
	staff, _ := staffFromContext(r.Context())
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = value
	}

	requests, err := h.requests.List(r.Context(), staff.TenantID, status, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if requests == nil {
		requests = []models.BookingRequest{}
	}
	writeJSON(w, http.StatusOK, listBookingRequestsResponse{BookingRequests: requests})
}
