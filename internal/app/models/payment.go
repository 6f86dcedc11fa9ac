package models

import (
	"math"
	"time"
)

// PaymentStatus is the settlement state of a payment
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// PaymentRef names the owner of a payment. Exactly one of the ids is set.
type PaymentRef struct {
	StudentID     *int64 `json:"studentId,omitempty"`
	ApplicationID *int64 `json:"applicationId,omitempty"`
}

// Valid reports whether exactly one reference is set
func (r PaymentRef) Valid() bool {
	return (r.StudentID == nil) != (r.ApplicationID == nil)
}

// Payment defines the payment model based on the 'payments' table
type Payment struct {
	ID              int64  `json:"id" db:"id"`
	RazorpayOrderID string `json:"razorpayOrderId" db:"razorpay_order_id"`
	PaymentRef
	Amount        float64           `json:"amount" db:"amount"`
	Currency      string            `json:"currency" db:"currency"`
	Method        string            `json:"method,omitempty" db:"method"`
	Status        PaymentStatus     `json:"status" db:"status"`
	TransactionID *string           `json:"transactionId,omitempty" db:"transaction_id"`
	PaymentType   string            `json:"paymentType" db:"payment_type"`
	Notes         map[string]string `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time         `json:"updatedAt" db:"updated_at"`
}

// FeeStructure is one row of the pricing table
type FeeStructure struct {
	ID          int64   `json:"id" db:"id"`
	PaymentType string  `json:"paymentType" db:"payment_type"`
	Course      string  `json:"course" db:"course"`
	Amount      float64 `json:"amount" db:"amount"`
}

// ToMinorUnits converts a major-unit amount (rupees) to minor units (paise)
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts minor units (paise) to a major-unit amount (rupees)
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}
