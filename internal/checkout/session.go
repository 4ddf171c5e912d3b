package checkout

import (
	"time"

	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/money"
)

// Address is a saved delivery address offered during checkout.
type Address struct {
	ID           string `json:"id"`
	ReceiverName string `json:"receiverName,omitempty"`
	Line         string `json:"line,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	IsDefault    bool   `json:"isDefault,omitempty"`
}

// Customer is the payer's contact information sent with the payment intent.
type Customer struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
}

// Failure describes why a session is in StateFailed.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
}

// Outcome records the last completed payment after the session resets to cart.
type Outcome struct {
	GatewayOrderID string      `json:"gatewayOrderId"`
	PaymentID      string      `json:"paymentId"`
	Amount         money.Money `json:"amount"`
	CompletedAt    time.Time   `json:"completedAt"`
}

// Session is the explicit checkout state a single writer drives through the
// Orchestrator. It is a plain value and serialises to JSON for storage.
type Session struct {
	ID                string        `json:"id"`
	Owner             string        `json:"owner"`
	State             State         `json:"state"`
	Snapshot          cart.Snapshot `json:"snapshot"`
	Totals            cart.Totals   `json:"totals"`
	Addresses         []Address     `json:"addresses,omitempty"`
	SelectedAddressID string        `json:"selectedAddressId,omitempty"`
	Coupon            coupon.Holder `json:"coupon"`
	GatewayOrderID    string        `json:"gatewayOrderId,omitempty"`
	PaymentID         string        `json:"paymentId,omitempty"`
	ChargeAmount      money.Money   `json:"chargeAmount"`
	Failure           *Failure      `json:"failure,omitempty"`
	LastOutcome       *Outcome      `json:"lastOutcome,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// NewSession starts a session in StateCart over snap.
func NewSession(id, owner string, snap cart.Snapshot, now time.Time) *Session {
	s := &Session{
		ID:        id,
		Owner:     owner,
		State:     StateCart,
		Coupon:    coupon.Holder{Scope: id},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.setSnapshot(snap)
	return s
}

func (s *Session) setSnapshot(snap cart.Snapshot) {
	s.Snapshot = snap
	s.Totals = cart.Aggregate(snap)
}

func (s *Session) hasAddress(id string) bool {
	for _, a := range s.Addresses {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) clearPayment() {
	s.GatewayOrderID = ""
	s.PaymentID = ""
	s.ChargeAmount = money.Money{}
}

// retryable reports whether a new payment intent may be started from the current state.
func (s *Session) retryable() bool {
	switch s.State {
	case StateAddressSelection, StateCancelled:
		return true
	case StateFailed:
		return s.Failure == nil || s.Failure.Kind == FailureGateway
	default:
		return false
	}
}
