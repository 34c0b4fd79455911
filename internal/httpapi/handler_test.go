package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon/kiosk-service/internal/bookingrequest"
	"salon/kiosk-service/internal/checkin"
	"salon/kiosk-service/internal/checkout"
	"salon/kiosk-service/internal/models"
	"salon/kiosk-service/internal/store"
	"salon/kiosk-service/internal/summary"
)

const (
	tenantA    = "11111111-1111-1111-1111-111111111111"
	tenantB    = "22222222-2222-2222-2222-222222222222"
	bookingID  = "33333333-3333-3333-3333-333333333333"
	requestID  = "44444444-4444-4444-4444-444444444444"
	checkoutID = "55555555-5555-5555-5555-555555555555"
	staffToken = "staff-token"
)

type fakeCheckIn struct {
	checkInFn func(ctx context.Context, input checkin.MatchInput) (checkin.Outcome, error)
	confirmFn func(ctx context.Context, input checkin.ConfirmInput) (checkin.Outcome, error)
	walkInFn  func(ctx context.Context, input checkin.WalkInInput) (checkin.WalkInResult, error)
}

func (f fakeCheckIn) CheckIn(ctx context.Context, input checkin.MatchInput) (checkin.Outcome, error) {
	if f.checkInFn == nil {
		return checkin.Outcome{}, nil
	}
	return f.checkInFn(ctx, input)
}

func (f fakeCheckIn) Confirm(ctx context.Context, input checkin.ConfirmInput) (checkin.Outcome, error) {
	if f.confirmFn == nil {
		return checkin.Outcome{}, nil
	}
	return f.confirmFn(ctx, input)
}

func (f fakeCheckIn) WalkIn(ctx context.Context, input checkin.WalkInInput) (checkin.WalkInResult, error) {
	if f.walkInFn == nil {
		return checkin.WalkInResult{}, nil
	}
	return f.walkInFn(ctx, input)
}

type fakeRequests struct {
	createFn func(ctx context.Context, tenantID string, input bookingrequest.CreateInput) (bookingrequest.CreateResult, error)
	updateFn func(ctx context.Context, staff models.StaffIdentity, id string, patch bookingrequest.Patch) (models.BookingRequest, error)
	listFn   func(ctx context.Context, tenantID, status string, limit int) ([]models.BookingRequest, error)
}

func (f fakeRequests) Create(ctx context.Context, tenantID string, input bookingrequest.CreateInput) (bookingrequest.CreateResult, error) {
	if f.createFn == nil {
		return bookingrequest.CreateResult{}, nil
	}
	return f.createFn(ctx, tenantID, input)
}

func (f fakeRequests) Update(ctx context.Context, staff models.StaffIdentity, id string, patch bookingrequest.Patch) (models.BookingRequest, error) {
	if f.updateFn == nil {
		return models.BookingRequest{}, nil
	}
	return f.updateFn(ctx, staff, id, patch)
}

func (f fakeRequests) List(ctx context.Context, tenantID, status string, limit int) ([]models.BookingRequest, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, tenantID, status, limit)
}

type fakeCheckout struct {
	startFn func(ctx context.Context, staff models.StaffIdentity, id string) (checkout.StartResult, error)
}

func (f fakeCheckout) Start(ctx context.Context, staff models.StaffIdentity, id string) (checkout.StartResult, error) {
	if f.startFn == nil {
		return checkout.StartResult{}, nil
	}
	return f.startFn(ctx, staff, id)
}

type fakeWebhooks struct {
	handleFn func(ctx context.Context, payload []byte, signature string) (checkout.WebhookResult, error)
}

func (f fakeWebhooks) Handle(ctx context.Context, payload []byte, signature string) (checkout.WebhookResult, error) {
	if f.handleFn == nil {
		return checkout.WebhookResult{}, nil
	}
	return f.handleFn(ctx, payload, signature)
}

type fakeSummary struct {
	todayFn func(ctx context.Context, tenantID string) (summary.Today, error)
}

func (f fakeSummary) Today(ctx context.Context, tenantID string) (summary.Today, error) {
	if f.todayFn == nil {
		return summary.Today{}, nil
	}
	return f.todayFn(ctx, tenantID)
}

type fakeAudit struct {
	listFn func(ctx context.Context, tenantID, entityID string) ([]store.EntityEvent, error)
}

func (f fakeAudit) ListEntityEvents(ctx context.Context, tenantID, entityID string) ([]store.EntityEvent, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, tenantID, entityID)
}

type fakeSessions struct {
	getFn func(ctx context.Context, token string) (models.StaffIdentity, error)
}

func (f fakeSessions) GetStaffSession(ctx context.Context, token string) (models.StaffIdentity, error) {
	if f.getFn != nil {
		return f.getFn(ctx, token)
	}
	if token != staffToken {
		return models.StaffIdentity{}, store.ErrSessionNotFound
	}
	return models.StaffIdentity{UserID: "user-1", StaffID: "staff-1", TenantID: tenantA, Role: models.RoleManager}, nil
}

func newTestHandler(opts Options) http.Handler {
	if opts.CheckIn == nil {
		opts.CheckIn = fakeCheckIn{}
	}
	if opts.BookingRequests == nil {
		opts.BookingRequests = fakeRequests{}
	}
	if opts.Checkout == nil {
		opts.Checkout = fakeCheckout{}
	}
	if opts.Webhooks == nil {
		opts.Webhooks = fakeWebhooks{}
	}
	if opts.Summary == nil {
		opts.Summary = fakeSummary{}
	}
	if opts.Sessions == nil {
		opts.Sessions = fakeSessions{}
	}
	if opts.Audit == nil {
		opts.Audit = fakeAudit{}
	}
	if opts.Kiosk.TenantID == "" {
		opts.Kiosk = KioskAuth{Tokens: []string{"kiosk-current", "kiosk-previous"}, TenantID: tenantA}
	}
	opts.Logger = zerolog.Nop()
	return NewHandler(opts).Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Error.Code, out.Error.Message
}

func staffHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + staffToken}
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(Options{})
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckInReturnsOutcome(t *testing.T) {
	var got checkin.MatchInput
	h := newTestHandler(Options{CheckIn: fakeCheckIn{
		checkInFn: func(_ context.Context, input checkin.MatchInput) (checkin.Outcome, error) {
			got = input
			return checkin.Outcome{Status: checkin.StatusNoBookingToday}, nil
		},
	}})

	rec := doJSON(t, h, http.MethodPost, "/api/kiosk/check-in", map[string]string{
		"tenantId": tenantA, "phone": "(313) 555-0100", "lastName": "Lovelace",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NO_BOOKING_TODAY", decodeBody(t, rec)["status"])
	assert.Equal(t, tenantA, got.TenantID)
	assert.Equal(t, "Lovelace", got.LastName)
}

func TestCheckInRejectsBadInputGenerically(t *testing.T) {
	h := newTestHandler(Options{})
	rec := doJSON(t, h, http.MethodPost, "/api/kiosk/check-in", map[string]string{
		"tenantId": "not-a-uuid", "phone": "3135550100", "lastName": "Lovelace",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, message := errorMessage(t, rec)
	assert.Equal(t, kioskGenericMessage, message)
}

func TestCheckInHidesStoreErrors(t *testing.T) {
	h := newTestHandler(Options{CheckIn: fakeCheckIn{
		checkInFn: func(context.Context, checkin.MatchInput) (checkin.Outcome, error) {
			return checkin.Outcome{}, errors.New(`pq: relation "customers" does not exist`)
		},
	}})
	rec := doJSON(t, h, http.MethodPost, "/api/kiosk/check-in", map[string]string{
		"tenantId": tenantA, "phone": "3135550100", "lastName": "Lovelace",
	}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "customers")
	_, message := errorMessage(t, rec)
	assert.Equal(t, kioskGenericMessage, message)
}

func TestConfirmNotEligible(t *testing.T) {
	h := newTestHandler(Options{CheckIn: fakeCheckIn{
		confirmFn: func(context.Context, checkin.ConfirmInput) (checkin.Outcome, error) {
			return checkin.Outcome{}, checkin.ErrBookingNotEligible
		},
	}})
	rec := doJSON(t, h, http.MethodPost, "/api/kiosk/check-in/confirm", map[string]string{
		"tenantId": tenantA, "bookingId": bookingID,
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmReturnsCheckedIn(t *testing.T) {
	checkedIn := time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)
	h := newTestHandler(Options{CheckIn: fakeCheckIn{
		confirmFn: func(_ context.Context, input checkin.ConfirmInput) (checkin.Outcome, error) {
			return checkin.Outcome{Status: checkin.StatusCheckedIn, Booking: &checkin.EnrichedBooking{
				ID: input.BookingID, Status: models.BookingCheckedIn, CheckedInAt: &checkedIn,
			}}, nil
		},
	}})
	rec := doJSON(t, h, http.MethodPost, "/api/kiosk/check-in/confirm", map[string]string{
		"tenantId": tenantA, "bookingId": bookingID,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "CHECKED_IN", body["status"])
	booking := body["booking"].(map[string]interface{})
	assert.Equal(t, bookingID, booking["id"])
}

func TestWalkInResponseShape(t *testing.T) {
	at := time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)
	h := newTestHandler(Options{CheckIn: fakeCheckIn{
		walkInFn: func(_ context.Context, input checkin.WalkInInput) (checkin.WalkInResult, error) {
			assert.Equal(t, "Ada", input.FirstName)
			return checkin.WalkInResult{Success: true, VisitID: "visit-1", CustomerID: "cust-1", CheckedInAt: at}, nil
		},
	}})
	rec := doJSON(t, h, http.MethodPost, "/api/kiosk/walk-in", map[string]string{
		"tenantId": tenantA, "firstName": "Ada", "lastName": "Lovelace", "phone": "3135550100",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"visitId":"visit-1","checkedInAt":"2025-03-14T16:00:00Z"}`, rec.Body.String())
}

func TestKioskRateLimitPerIP(t *testing.T) {
	h := newTestHandler(Options{RateLimit: RateLimitConfig{IPPerMinute: 1, IPBurst: 2, TenantPerMinute: 100, TenantBurst: 100}})
	body := map[string]string{"tenantId": tenantA, "phone": "3135550100", "lastName": "Lovelace"}

	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/api/kiosk/check-in", body, nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/api/kiosk/check-in", body, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, h, http.MethodPost, "/api/kiosk/check-in", body, nil).Code)
}

func TestKioskRateLimitPerTenant(t *testing.T) {
	h := newTestHandler(Options{RateLimit: RateLimitConfig{IPPerMinute: 100, IPBurst: 100, TenantPerMinute: 1, TenantBurst: 1}})
	first := map[string]string{"tenantId": tenantA, "phone": "3135550100", "lastName": "Lovelace"}
	other := map[string]string{"tenantId": tenantB, "phone": "3135550100", "lastName": "Lovelace"}

	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/api/kiosk/check-in", first, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, h, http.MethodPost, "/api/kiosk/check-in", first, nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/api/kiosk/check-in", other, nil).Code)
}

func TestCreateBookingRequestKioskAuth(t *testing.T) {
	var gotTenant string
	h := newTestHandler(Options{BookingRequests: fakeRequests{
		createFn: func(_ context.Context, tenantID string, input bookingrequest.CreateInput) (bookingrequest.CreateResult, error) {
			gotTenant = tenantID
			return bookingrequest.CreateResult{ID: requestID, Status: models.RequestNew}, nil
		},
	}})
	body := map[string]string{"name": "Ada", "phone": "3135550100", "preferredWindow": "Friday afternoon"}

	cases := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{"missing token", nil, http.StatusUnauthorized},
		{"wrong token", map[string]string{"X-Kiosk-Token": "nope"}, http.StatusUnauthorized},
		{"current token", map[string]string{"X-Kiosk-Token": "kiosk-current"}, http.StatusCreated},
		{"rotated token via auth header", map[string]string{"X-Kiosk-Auth": "kiosk-previous"}, http.StatusCreated},
		{"bearer token", map[string]string{"Authorization": "Bearer kiosk-current"}, http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/booking-requests", body, tc.headers)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Equal(t, tenantA, gotTenant)
}

func TestCreateBookingRequestResponse(t *testing.T) {
	created := time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)
	h := newTestHandler(Options{BookingRequests: fakeRequests{
		createFn: func(context.Context, string, bookingrequest.CreateInput) (bookingrequest.CreateResult, error) {
			return bookingrequest.CreateResult{ID: requestID, Status: models.RequestNew, CreatedAt: created}, nil
		},
	}})
	rec := doJSON(t, h, http.MethodPost, "/api/booking-requests",
		map[string]string{"name": "Ada", "phone": "3135550100", "preferredWindow": "Friday"},
		map[string]string{"X-Kiosk-Token": "kiosk-current"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"bookingRequest":{"id":%q,"status":"new","created_at":"2025-03-14T16:00:00Z"}}`, requestID), rec.Body.String())
}

func TestCreateBookingRequestErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{bookingrequest.ErrInvalidPayload, http.StatusBadRequest},
		{bookingrequest.ErrInvalidPhone, http.StatusBadRequest},
		{errors.New("insert failed: connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newTestHandler(Options{BookingRequests: fakeRequests{
			createFn: func(context.Context, string, bookingrequest.CreateInput) (bookingrequest.CreateResult, error) {
				return bookingrequest.CreateResult{}, tc.err
			},
		}})
		rec := doJSON(t, h, http.MethodPost, "/api/booking-requests",
			map[string]string{"name": "Ada", "phone": "3135550100", "preferredWindow": "Friday"},
			map[string]string{"X-Kiosk-Token": "kiosk-current"})
		assert.Equal(t, tc.status, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection reset")
	}
}

func TestKioskNotConfigured(t *testing.T) {
	h := newTestHandler(Options{Kiosk: KioskAuth{TenantID: tenantA}})
	rec := doJSON(t, h, http.MethodPost, "/api/booking-requests",
		map[string]string{"name": "Ada"}, map[string]string{"X-Kiosk-Token": ""})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStaffEndpointsRequireSession(t *testing.T) {
	h := newTestHandler(Options{})
	rec := doJSON(t, h, http.MethodPatch, "/api/booking-requests/"+requestID, map[string]string{"status": "closed"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/admin/today", nil, map[string]string{"X-Session-ID": "expired"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	failing := newTestHandler(Options{Sessions: fakeSessions{
		getFn: func(context.Context, string) (models.StaffIdentity, error) {
			return models.StaffIdentity{}, errors.New("db down")
		},
	}})
	rec = doJSON(t, failing, http.MethodGet, "/api/admin/today", nil, staffHeaders())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUpdateBookingRequest(t *testing.T) {
	note := "called back"
	updatedAt := time.Date(2025, 3, 14, 17, 0, 0, 0, time.UTC)
	var gotPatch bookingrequest.Patch
	var gotStaff models.StaffIdentity
	h := newTestHandler(Options{BookingRequests: fakeRequests{
		updateFn: func(_ context.Context, staff models.StaffIdentity, id string, patch bookingrequest.Patch) (models.BookingRequest, error) {
			gotStaff, gotPatch = staff, patch
			return models.BookingRequest{RequestID: id, Status: models.RequestInProgress, StaffNote: &note, UpdatedAt: updatedAt}, nil
		},
	}})

	rec := doJSON(t, h, http.MethodPatch, "/api/booking-requests/"+requestID,
		map[string]interface{}{"status": "in_progress", "staffNote": note, "phorestAppointmentId": nil}, staffHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"bookingRequest":{"id":%q,"status":"in_progress","staff_note":"called back","phorest_appointment_id":null,"updated_at":"2025-03-14T17:00:00Z"}}`, requestID), rec.Body.String())
	assert.Equal(t, tenantA, gotStaff.TenantID)
	require.NotNil(t, gotPatch.Status)
	assert.True(t, gotPatch.PhorestAppointmentID.Set)
	assert.Nil(t, gotPatch.PhorestAppointmentID.Value)
}

func TestUpdateBookingRequestErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"forbidden", bookingrequest.ErrForbidden, http.StatusForbidden},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"no changes", bookingrequest.ErrNoChanges, http.StatusBadRequest},
		{"backward", bookingrequest.ErrInvalidTransition, http.StatusConflict},
		{"store", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(Options{BookingRequests: fakeRequests{
				updateFn: func(context.Context, models.StaffIdentity, string, bookingrequest.Patch) (models.BookingRequest, error) {
					return models.BookingRequest{}, tc.err
				},
			}})
			rec := doJSON(t, h, http.MethodPatch, "/api/booking-requests/"+requestID, map[string]string{"status": "closed"}, staffHeaders())
			assert.Equal(t, tc.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "db down")
		})
	}

	h := newTestHandler(Options{})
	rec := doJSON(t, h, http.MethodPatch, "/api/booking-requests/not-a-uuid", map[string]string{"status": "closed"}, staffHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBookingRequestsScopedToStaffTenant(t *testing.T) {
	h := newTestHandler(Options{BookingRequests: fakeRequests{
		listFn: func(_ context.Context, tenantID, status string, limit int) ([]models.BookingRequest, error) {
			assert.Equal(t, tenantA, tenantID)
			assert.Equal(t, "new", status)
			assert.Equal(t, 25, limit)
			return nil, nil
		},
	}})
	rec := doJSON(t, h, http.MethodGet, "/api/booking-requests?status=new&limit=25", nil, staffHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bookingRequests":[]}`, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/booking-requests?limit=abc", nil, staffHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartCheckout(t *testing.T) {
	cases := []struct {
		name   string
		result checkout.StartResult
		err    error
		status int
	}{
		{"created", checkout.StartResult{URL: "https://pay.example/cs_1"}, nil, http.StatusOK},
		{"not found", checkout.StartResult{}, store.ErrNotFound, http.StatusNotFound},
		{"paid", checkout.StartResult{}, checkout.ErrAlreadyPaid, http.StatusConflict},
		{"debounced", checkout.StartResult{}, checkout.ErrRateLimited, http.StatusTooManyRequests},
		{"no items", checkout.StartResult{}, checkout.ErrNoLineItems, http.StatusBadRequest},
		{"processor down", checkout.StartResult{}, fmt.Errorf("%w: timeout", checkout.ErrUpstream), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(Options{Checkout: fakeCheckout{
				startFn: func(_ context.Context, staff models.StaffIdentity, id string) (checkout.StartResult, error) {
					assert.Equal(t, checkoutID, id)
					assert.Equal(t, tenantA, staff.TenantID)
					return tc.result, tc.err
				},
			}})
			rec := doJSON(t, h, http.MethodPost, "/api/checkout/session", map[string]string{"checkoutSessionId": checkoutID}, staffHeaders())
			assert.Equal(t, tc.status, rec.Code)
			if tc.err == nil {
				assert.JSONEq(t, `{"url":"https://pay.example/cs_1"}`, rec.Body.String())
			}
		})
	}
}

func TestStartCheckoutRejectsBadID(t *testing.T) {
	h := newTestHandler(Options{})
	rec := doJSON(t, h, http.MethodPost, "/api/checkout/session", map[string]string{"checkoutSessionId": "abc"}, staffHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStripeWebhook(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"handled", nil, http.StatusOK},
		{"bad signature", checkout.ErrInvalidSignature, http.StatusBadRequest},
		{"tenant mismatch", checkout.ErrTenantMismatch, http.StatusForbidden},
		{"ledger", checkout.ErrLedgerWrite, http.StatusInternalServerError},
		{"persistence", checkout.ErrPersistence, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotPayload, gotSignature string
			h := newTestHandler(Options{Webhooks: fakeWebhooks{
				handleFn: func(_ context.Context, payload []byte, signature string) (checkout.WebhookResult, error) {
					gotPayload, gotSignature = string(payload), signature
					return checkout.WebhookResult{}, tc.err
				},
			}})
			req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewBufferString(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, `{"id":"evt_1"}`, gotPayload)
			assert.Equal(t, "t=1,v1=abc", gotSignature)
			if tc.err == nil {
				assert.JSONEq(t, `{"received":true}`, rec.Body.String())
			}
		})
	}
}

func TestAdminToday(t *testing.T) {
	h := newTestHandler(Options{Summary: fakeSummary{
		todayFn: func(_ context.Context, tenantID string) (summary.Today, error) {
			assert.Equal(t, tenantA, tenantID)
			return summary.Today{Timezone: "America/Detroit"}, nil
		},
	}})
	rec := doJSON(t, h, http.MethodGet, "/api/admin/today", nil, staffHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "America/Detroit", decodeBody(t, rec)["timezone"])
}

func TestKioskAuthValid(t *testing.T) {
	auth := KioskAuth{Tokens: []string{"current", ""}, TenantID: tenantA}
	assert.True(t, auth.valid("current"))
	assert.False(t, auth.valid(""))
	assert.False(t, auth.valid("curren"))
}

func auditChain(entityID string, types ...string) []store.EntityEvent {
	var events []store.EntityEvent
	prev := ""
	at := time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)
	for i, eventType := range types {
		payload := json.RawMessage(`{"n":` + fmt.Sprint(i) + `}`)
		hash := store.ComputeEntityEventHash(prev, entityID, eventType, payload, at, i+1)
		events = append(events, store.EntityEvent{
			EntityID: entityID, Seq: i + 1, Type: eventType, Payload: payload,
			CreatedAt: at, PrevHash: prev, Hash: hash,
		})
		prev = hash
	}
	return events
}

func TestAdminAudit(t *testing.T) {
	chain := auditChain(requestID, "booking_request.created", "booking_request.updated")
	h := newTestHandler(Options{Audit: fakeAudit{
		listFn: func(_ context.Context, tenantID, entityID string) ([]store.EntityEvent, error) {
			if tenantID != tenantA || entityID != requestID {
				return nil, nil
			}
			return chain, nil
		},
	}})

	rec := doJSON(t, h, http.MethodGet, "/api/admin/audit/"+requestID, nil, staffHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var body auditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Intact)
	assert.Len(t, body.Events, 2)

	rec = doJSON(t, h, http.MethodGet, "/api/admin/audit/"+bookingID, nil, staffHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAuditReportsTampering(t *testing.T) {
	chain := auditChain(requestID, "booking_request.created", "booking_request.updated")
	chain[1].Payload = json.RawMessage(`{"n":99}`)
	h := newTestHandler(Options{Audit: fakeAudit{
		listFn: func(context.Context, string, string) ([]store.EntityEvent, error) {
			return chain, nil
		},
	}})

	rec := doJSON(t, h, http.MethodGet, "/api/admin/audit/"+requestID, nil, staffHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var body auditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Intact)
	assert.Equal(t, 2, body.BrokenAt)
}
