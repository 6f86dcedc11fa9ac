package dto

import "github.com/00Thor/CCPUR-sub000/internal/app/models"

// CreateOrderRequest opens a payment intent for a fee
type CreateOrderRequest struct {
	PaymentType   string `json:"paymentType" validate:"required,notblank"`
	Course        string `json:"course" validate:"required,notblank"`
	StudentID     *int64 `json:"studentId,omitempty" validate:"omitempty,gt=0"`
	ApplicationID *int64 `json:"applicationId,omitempty" validate:"omitempty,gt=0"`
}

// Ref returns the payment owner reference
func (r CreateOrderRequest) Ref() models.PaymentRef {
	return models.PaymentRef{StudentID: r.StudentID, ApplicationID: r.ApplicationID}
}

// OrderResponse is returned to the client to open the gateway checkout
type OrderResponse struct {
	PaymentID int64   `json:"paymentId"`
	OrderID   string  `json:"orderId"`
	Amount    float64 `json:"amount"`
	// AmountMinor is the amount in the gateway's minor unit
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
	KeyID       string `json:"keyId"`
}

// VerifyPaymentRequest confirms a checkout
type VerifyPaymentRequest struct {
	PaymentID string `json:"razorpayPaymentId" validate:"required"`
	OrderID   string `json:"razorpayOrderId" validate:"required"`
}

// UpdatePaymentStatusRequest sets the status of the latest payment for a reference
type UpdatePaymentStatusRequest struct {
	StudentID     *int64               `json:"studentId,omitempty" validate:"omitempty,gt=0"`
	ApplicationID *int64               `json:"applicationId,omitempty" validate:"omitempty,gt=0"`
	Status        models.PaymentStatus `json:"status" validate:"required"`
}

// Ref returns the payment owner reference
func (r UpdatePaymentStatusRequest) Ref() models.PaymentRef {
	return models.PaymentRef{StudentID: r.StudentID, ApplicationID: r.ApplicationID}
}
