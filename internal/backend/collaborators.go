package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/money"
	"github.com/noah-isme/toko-checkout/internal/payment"
)

// FetchCart loads the caller's cart.
func (c *Client) FetchCart(ctx context.Context) (cart.Snapshot, error) {
	env, err := c.call(ctx, CollabCart, http.MethodGet, "/cart", nil)
	if err != nil {
		return cart.Snapshot{}, err
	}
	var wc wireCart
	if err := decodeData(CollabCart, env, &wc); err != nil {
		return cart.Snapshot{}, err
	}
	cur := wc.Currency
	if cur == "" {
		cur = c.currency
	}
	lines := make([]cart.Line, 0, len(wc.Lines))
	for _, l := range wc.Lines {
		lines = append(lines, cart.Line{
			LineID:         l.LineID,
			ProductID:      l.ProductID,
			Title:          l.Title,
			VariantKey:     cart.VariantKey(l.Color, l.Size),
			UnitPrice:      money.New(l.UnitPrice, cur),
			UnitMRP:        money.New(l.UnitMRP, cur),
			Quantity:       l.Quantity,
			AvailableStock: l.AvailableStock,
		})
	}
	return cart.NewSnapshot(cur, lines), nil
}

// ListAddresses loads the caller's saved addresses.
func (c *Client) ListAddresses(ctx context.Context) ([]checkout.Address, error) {
	env, err := c.call(ctx, CollabAddresses, http.MethodGet, "/addresses", nil)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	var out []checkout.Address
	if err := decodeData(CollabAddresses, env, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateCoupon asks the backend to validate and price a coupon.
func (c *Client) ValidateCoupon(ctx context.Context, req coupon.Request) (coupon.Result, error) {
	env, err := c.call(ctx, CollabCoupon, http.MethodPost, "/coupons/apply", wireCouponRequest{
		Code:               req.Code,
		OrderValue:         req.OrderValue.Amount,
		Currency:           req.OrderValue.Currency,
		ProductOccurrences: req.ProductOccurrences,
	})
	if err != nil {
		return coupon.Result{}, err
	}
	var wc wireCoupon
	if err := decodeData(CollabCoupon, env, &wc); err != nil {
		return coupon.Result{}, err
	}
	return coupon.Result{
		Code:               wc.Code,
		Offer:              wc.Offer,
		FinalAmount:        money.New(wc.FinalAmount, req.OrderValue.Currency),
		EligibleProductIDs: wc.EligibleProductIDs,
	}, nil
}

// CreatePayment opens a payment intent. It is sent once, never retried.
func (c *Client) CreatePayment(ctx context.Context, req payment.IntentRequest) (payment.Intent, error) {
	env, err := c.call(ctx, CollabPaymentIntent, http.MethodPost, "/payments/intent", wireIntentRequest{
		Amount:     req.Amount.Amount,
		Currency:   req.Amount.Currency,
		CouponCode: req.CouponCode,
		Name:       req.CustomerName,
		Email:      req.Email,
		AddressID:  req.AddressID,
	})
	if err != nil {
		return payment.Intent{}, err
	}
	var wi wireIntent
	if err := decodeData(CollabPaymentIntent, env, &wi); err != nil {
		return payment.Intent{}, err
	}
	cur := wi.Currency
	if cur == "" {
		cur = req.Amount.Currency
	}
	return payment.Intent{GatewayOrderID: wi.GatewayOrderID, Amount: money.New(wi.Amount, cur)}, nil
}

// VerifyPayment asks the backend to verify a gateway callback. Verified only
// when both the status flag and ok are true.
func (c *Client) VerifyPayment(ctx context.Context, cb payment.Callback) error {
	env, err := c.call(ctx, CollabPaymentVerify, http.MethodPost, "/payments/verify", wireVerifyRequest{
		GatewayOrderID: cb.GatewayOrderID,
		PaymentID:      cb.PaymentID,
		Signature:      cb.Signature,
	})
	if err != nil {
		return err
	}
	if env.OK == nil || !*env.OK {
		msg := env.Message
		if msg == "" {
			msg = "payment could not be verified"
		}
		return common.Collaborator("PAYMENT_NOT_VERIFIED", msg, errors.New("verify returned ok=false"))
	}
	return nil
}
