package payment

import (
	"context"
	"strings"

	"github.com/noah-isme/toko-checkout/internal/money"
)

// IntentRequest is sent to the payment-intent collaborator. Amount is in integer minor units.
type IntentRequest struct {
	Amount       money.Money `json:"amount"`
	CouponCode   string      `json:"couponCode,omitempty"`
	CustomerName string      `json:"name"`
	Email        string      `json:"email"`
	AddressID    string      `json:"addressId"`
}

// Intent is the collaborator's answer to an intent request.
type Intent struct {
	GatewayOrderID string      `json:"gatewayOrderId"`
	Amount         money.Money `json:"amount"`
}

// Callback is the signed triple the gateway hands back after a successful payment.
type Callback struct {
	GatewayOrderID string `json:"gatewayOrderId" validate:"required"`
	PaymentID      string `json:"paymentId" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
}

// Normalise trims whitespace from every field.
func (c Callback) Normalise() Callback {
	return Callback{
		GatewayOrderID: strings.TrimSpace(c.GatewayOrderID),
		PaymentID:      strings.TrimSpace(c.PaymentID),
		Signature:      strings.TrimSpace(c.Signature),
	}
}

// Failure is the gateway's report of a declined or errored payment.
type Failure struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
	Reason      string `json:"reason,omitempty"`
	PaymentID   string `json:"paymentId,omitempty"`
}

// Message returns the most specific human readable text available.
func (f Failure) Message() string {
	for _, s := range []string{f.Description, f.Reason, f.Code} {
		if strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return "payment failed"
}

// Creator opens payment intents with the backend.
type Creator interface {
	CreatePayment(ctx context.Context, req IntentRequest) (Intent, error)
}

// Verifier asks the backend to verify a gateway callback. A nil error means verified.
type Verifier interface {
	VerifyPayment(ctx context.Context, cb Callback) error
}
