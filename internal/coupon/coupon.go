package coupon

import (
	"context"
	"errors"
	"strings"

	"github.com/noah-isme/toko-checkout/internal/money"
)

var (
	// ErrEmptyCode is returned when the submitted code is blank after trimming.
	ErrEmptyCode = errors.New("coupon code is required")
	// ErrEmptyCart is returned when a coupon is applied to a cart with no quantity.
	ErrEmptyCart = errors.New("coupon cannot be applied to an empty cart")
)

// InvalidError carries the collaborator's rejection reason verbatim.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	if e == nil || e.Reason == "" {
		return "coupon invalid"
	}
	return "coupon invalid: " + e.Reason
}

// Coupon is a server-validated discount bound to one cart fingerprint.
// FinalAmount is the authoritative post-discount total.
type Coupon struct {
	Code               string      `json:"code"`
	Offer              string      `json:"offer,omitempty"`
	EligibleProductIDs []string    `json:"eligibleProductIds,omitempty"`
	FinalAmount        money.Money `json:"finalAmount"`
}

// Request is sent to the validation collaborator.
type Request struct {
	Code               string      `json:"code"`
	OrderValue         money.Money `json:"orderValue"`
	ProductOccurrences []string    `json:"productOccurrences"`
}

// Result is the validation collaborator's success payload.
type Result struct {
	Code               string      `json:"code"`
	Offer              string      `json:"offer"`
	FinalAmount        money.Money `json:"finalAmount"`
	EligibleProductIDs []string    `json:"eligibleProductIds,omitempty"`
}

// Validator validates a coupon against the current order. Business rejections
// are returned as collaborator AppErrors carrying the reason.
type Validator interface {
	ValidateCoupon(ctx context.Context, req Request) (Result, error)
}

// Holder is the per-session coupon state. Scope keys the in-flight guard.
type Holder struct {
	Scope           string  `json:"scope"`
	Coupon          *Coupon `json:"coupon,omitempty"`
	CartFingerprint string  `json:"cartFingerprint,omitempty"`
}

// Applied reports whether a coupon is currently held.
func (h *Holder) Applied() bool {
	return h != nil && h.Coupon != nil
}

// Clear drops the held coupon.
func (h *Holder) Clear() {
	if h == nil {
		return
	}
	h.Coupon = nil
	h.CartFingerprint = ""
}

// NormaliseCode trims and upper-cases a coupon code.
func NormaliseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Discount returns max(0, subtotal - FinalAmount) and whether the floor was hit.
func Discount(c Coupon, subtotal money.Money) (money.Money, bool) {
	final := money.New(c.FinalAmount.Amount, subtotal.Currency)
	return subtotal.Sub(final)
}

// Total is the amount to charge: the coupon's FinalAmount when one is held,
// otherwise the subtotal.
func Total(h *Holder, subtotal money.Money) money.Money {
	if h.Applied() {
		return money.New(h.Coupon.FinalAmount.Amount, subtotal.Currency)
	}
	return subtotal
}
