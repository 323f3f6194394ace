package payment

import (
	"context"
	"time"
)

type PaymentRequest struct {
	UserID         uint
	Amount         int64 // VND
	Currency       string
	IdempotencyKey string
	Description    string
	ExpiresIn      time.Duration
	// Gateway fields
	OrderID       string // unique order_id; echoed back as merchant_order_id in the webhook
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	CallbackURL   string
}

type PaymentResponse struct {
	Reference   string
	Status      string
	CheckoutURL string
	ExpiresAt   time.Time
}

type Provider interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	VerifyPayment(ctx context.Context, reference string) (bool, error)
}
