// Package payment talks to the payment gateway.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
)

// Gateway event names delivered by webhook
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"

	StatusCaptured = "captured"
)

// Order is a gateway order. Amount is in minor units.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
	Notes    map[string]string
}

// Details is a gateway payment. Amount is in minor units.
type Details struct {
	ID       string
	OrderID  string
	Amount   int64
	Currency string
	Status   string
	Method   string
	Notes    map[string]string
}

// Gateway is the subset of the payment provider used by the portal
type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Details, error)
	VerifyWebhookSignature(body []byte, signature string) bool
}

// WebhookEvent is the part of a webhook delivery the portal acts on
type WebhookEvent struct {
	Event   string
	Payment Details
}

type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID       string          `json:"id"`
				OrderID  string          `json:"order_id"`
				Amount   int64           `json:"amount"`
				Currency string          `json:"currency"`
				Status   string          `json:"status"`
				Method   string          `json:"method"`
				Notes    json.RawMessage `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhookEvent decodes a webhook body. The signature must be checked first.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	e := p.Payload.Payment.Entity
	return &WebhookEvent{
		Event: p.Event,
		Payment: Details{
			ID:       e.ID,
			OrderID:  e.OrderID,
			Amount:   e.Amount,
			Currency: e.Currency,
			Status:   e.Status,
			Method:   e.Method,
			Notes:    decodeNotes(e.Notes),
		},
	}, nil
}

// decodeNotes accepts an object; the gateway sends [] when notes are empty
func decodeNotes(raw json.RawMessage) map[string]string {
	notes := map[string]string{}
	if len(raw) == 0 {
		return notes
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return notes
	}
	for k, v := range m {
		notes[k] = fmt.Sprint(v)
	}
	return notes
}
