// Package payments adapts Stripe Checkout to the checkout.Processor
// boundary.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salon/kiosk-service/internal/checkout"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrNotConfigured = errors.New("stripe secret key is missing")

type Stripe struct {
	api           *client.API
	webhookSecret string
}

var _ checkout.Processor = (*Stripe)(nil)

func NewStripe(secretKey, webhookSecret string) *Stripe {
	s := &Stripe{webhookSecret: webhookSecret}
	if secretKey != "" {
		s.api = client.New(secretKey, nil)
	}
	return s
}

func (s *Stripe) CreateSession(ctx context.Context, req checkout.CreateSessionRequest) (checkout.ProcessorSession, error) {
	if s.api == nil {
		return checkout.ProcessorSession{}, ErrNotConfigured
	}
	params := sessionParams(req)
	params.Context = ctx
	created, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return checkout.ProcessorSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return toProcessorSession(created), nil
}

func (s *Stripe) RetrieveSession(ctx context.Context, id string) (checkout.ProcessorSession, error) {
	if s.api == nil {
		return checkout.ProcessorSession{}, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	found, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return checkout.ProcessorSession{}, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return toProcessorSession(found), nil
}

// VerifyEvent checks the Stripe-Signature header and decodes the checkout
// session carried by the event. API version drift between the account and
// this library is tolerated since only stable fields are read.
func (s *Stripe) VerifyEvent(payload []byte, signature string) (checkout.Event, error) {
	if s.webhookSecret == "" {
		return checkout.Event{}, errors.New("stripe webhook secret is missing")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return checkout.Event{}, err
	}

	out := checkout.Event{
		ID:       event.ID,
		Type:     string(event.Type),
		Metadata: map[string]string{},
		Created:  time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}
	var object struct {
		ID            string            `json:"id"`
		Object        string            `json:"object"`
		PaymentIntent json.RawMessage   `json:"payment_intent"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return checkout.Event{}, fmt.Errorf("decode event object: %w", err)
	}
	if object.Object != "" && object.Object != "checkout.session" {
		return out, nil
	}
	out.ObjectID = object.ID
	out.PaymentIntentID = paymentIntentID(object.PaymentIntent)
	for k, v := range object.Metadata {
		out.Metadata[k] = v
	}
	return out, nil
}

func sessionParams(req checkout.CreateSessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmountCents),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	return params
}

func toProcessorSession(s *stripe.CheckoutSession) checkout.ProcessorSession {
	if s == nil {
		return checkout.ProcessorSession{}
	}
	return checkout.ProcessorSession{ID: s.ID, URL: s.URL, Status: string(s.Status)}
}

// paymentIntentID accepts either the bare id or an expanded object.
func paymentIntentID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}
