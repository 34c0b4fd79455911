package models

import "time"

type CheckoutSession struct {
	SessionID               string     `json:"id"`
	TenantID                string     `json:"salon_id"`
	CustomerID              string     `json:"customer_id"`
	BookingID               *string    `json:"booking_id,omitempty"`
	SubtotalCents           int64      `json:"subtotal_cents"`
	TaxCents                int64      `json:"tax_cents"`
	TipCents                int64      `json:"tip_cents"`
	TotalCents              int64      `json:"total_cents"`
	Status                  string     `json:"status"`
	ExternalSessionID       *string    `json:"stripe_checkout_session_id,omitempty"`
	ExternalPaymentIntentID *string    `json:"stripe_payment_intent_id,omitempty"`
	LastEventID             *string    `json:"last_stripe_event_id,omitempty"`
	LastEventType           *string    `json:"last_stripe_event_type,omitempty"`
	LastEventAt             *time.Time `json:"last_stripe_event_at,omitempty"`
	CompletedAt             *time.Time `json:"completed_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

type CheckoutLineItem struct {
	LineItemID     string  `json:"id"`
	SessionID      string  `json:"checkout_session_id"`
	ItemType       string  `json:"item_type"`
	Description    *string `json:"description,omitempty"`
	Quantity       int64   `json:"quantity"`
	UnitPriceCents int64   `json:"unit_price_cents"`
}

type WebhookEvent struct {
	EventID           string    `json:"event_id"`
	Type              string    `json:"type"`
	ExternalSessionID *string   `json:"checkout_session_id,omitempty"`
	ReceivedAt        time.Time `json:"created_at"`
}

const (
	CheckoutPending   = "pending"
	CheckoutCreating  = "creating"
	CheckoutCompleted = "completed"
	CheckoutExpired   = "expired"
	CheckoutCancelled = "cancelled"
	CheckoutFailed    = "failed"
)

const (
	LineItemService = "service"
	LineItemProduct = "product"
	LineItemTip     = "tip"
)
