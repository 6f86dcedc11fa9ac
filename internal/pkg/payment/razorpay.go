package payment

import (
	"context"
	"fmt"
	"math"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// RazorpayConfig holds API and webhook credentials
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// RazorpayGateway implements Gateway with the razorpay client
type RazorpayGateway struct {
	client        *razorpay.Client
	keyID         string
	webhookSecret string
}

// NewRazorpayGateway creates a gateway client
func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	return &RazorpayGateway{
		client:        razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		keyID:         cfg.KeyID,
		webhookSecret: cfg.WebhookSecret,
	}
}

// KeyID returns the public key id handed to the checkout page
func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

// CreateOrder creates an order for amountMinor
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	noteData := make(map[string]interface{}, len(notes))
	for k, v := range notes {
		noteData[k] = v
	}
	body, err := g.client.Order.Create(map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
		"notes":    noteData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return orderFromMap(body), nil
}

// FetchOrder loads an order by id
func (g *RazorpayGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := g.client.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	return orderFromMap(body), nil
}

// FetchPayment loads a payment by id
func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*Details, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := g.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	return detailsFromMap(body), nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature of a raw webhook body
func (g *RazorpayGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	if g.webhookSecret == "" || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, g.webhookSecret)
}

func orderFromMap(m map[string]interface{}) *Order {
	return &Order{
		ID:       str(m["id"]),
		Amount:   minor(m["amount"]),
		Currency: str(m["currency"]),
		Receipt:  str(m["receipt"]),
		Status:   str(m["status"]),
		Notes:    notesFrom(m["notes"]),
	}
}

func detailsFromMap(m map[string]interface{}) *Details {
	return &Details{
		ID:       str(m["id"]),
		OrderID:  str(m["order_id"]),
		Amount:   minor(m["amount"]),
		Currency: str(m["currency"]),
		Status:   str(m["status"]),
		Method:   str(m["method"]),
		Notes:    notesFrom(m["notes"]),
	}
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// minor reads a JSON number, which the client decodes as float64
func minor(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(math.Round(n))
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func notesFrom(v interface{}) map[string]string {
	notes := map[string]string{}
	m, ok := v.(map[string]interface{})
	if !ok {
		return notes
	}
	for k, val := range m {
		notes[k] = fmt.Sprint(val)
	}
	return notes
}
