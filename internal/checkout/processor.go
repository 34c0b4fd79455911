package checkout

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoLineItems      = errors.New("no line items for checkout session")
	ErrAlreadyPaid      = errors.New("checkout session already completed")
	ErrRateLimited      = errors.New("too many checkout requests")
	ErrUpstream         = errors.New("payment processor request failed")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrTenantMismatch   = errors.New("webhook tenant does not match session")
	ErrLedgerWrite      = errors.New("failed to record webhook event")
	ErrPersistence      = errors.New("failed to apply webhook event")
)

// Metadata keys written on processor sessions and read back from webhooks.
const (
	MetaCheckoutSessionID = "checkout_session_id"
	MetaTenantID          = "salon_id"
	MetaCustomerID        = "customer_id"
)

// Processor session states as reported by RetrieveSession.
const (
	ProcessorOpen     = "open"
	ProcessorComplete = "complete"
	ProcessorExpired  = "expired"
)

type LineItem struct {
	Name            string
	UnitAmountCents int64
	Quantity        int64
}

type CreateSessionRequest struct {
	LineItems      []LineItem
	Currency       string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

type ProcessorSession struct {
	ID     string
	URL    string
	Status string
}

// Event is a verified webhook delivery reduced to what reconciliation reads.
type Event struct {
	ID              string
	Type            string
	ObjectID        string
	PaymentIntentID string
	Metadata        map[string]string
	Created         time.Time
}

// Processor is the payment provider boundary.
type Processor interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (ProcessorSession, error)
	RetrieveSession(ctx context.Context, id string) (ProcessorSession, error)
	VerifyEvent(payload []byte, signature string) (Event, error)
}
