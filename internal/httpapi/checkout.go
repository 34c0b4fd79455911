package httpapi

import (
	"io"
	"net/http"
	"strings"
)

type startCheckoutRequest struct {
	CheckoutSessionID string `json:"checkoutSessionId"`
}

type startCheckoutResponse struct {
	URL string `json:"url"`
}

func (h *Handler) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	staff, _ := staffFromContext(r.Context())

	var req startCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	req.CheckoutSessionID = strings.TrimSpace(req.CheckoutSessionID)
	if !isValidUUID(req.CheckoutSessionID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_payload", "checkoutSessionId must be a UUID")
		return
	}

	result, err := h.checkout.Start(r.Context(), staff, req.CheckoutSessionID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, startCheckoutResponse{URL: result.URL})
}

func (h *Handler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_payload", "unreadable body")
		return
	}

	if _, err := h.webhooks.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
