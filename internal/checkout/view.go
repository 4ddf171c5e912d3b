package checkout

import (
	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/money"
)

// Display holds locale-formatted amounts for the storefront.
type Display struct {
	Subtotal       string `json:"subtotal"`
	MRPTotal       string `json:"mrpTotal"`
	ProductSavings string `json:"productSavings"`
	Discount       string `json:"discount"`
	Total          string `json:"total"`
}

// View is the read model of a session returned by the HTTP API. Discount is
// derived for display only; Total is what will be charged.
type View struct {
	ID                string         `json:"id"`
	State             State          `json:"state"`
	Lines             []cart.Line    `json:"lines"`
	Totals            cart.Totals    `json:"totals"`
	Coupon            *coupon.Coupon `json:"coupon,omitempty"`
	Discount          money.Money    `json:"discount"`
	Total             money.Money    `json:"total"`
	Display           Display        `json:"display"`
	Addresses         []Address      `json:"addresses,omitempty"`
	SelectedAddressID string         `json:"selectedAddressId,omitempty"`
	GatewayOrderID    string         `json:"gatewayOrderId,omitempty"`
	Failure           *Failure       `json:"failure,omitempty"`
	LastOutcome       *Outcome       `json:"lastOutcome,omitempty"`
}

// Present builds the read model of s formatted for locale.
func (o *Orchestrator) Present(s *Session, locale string) View {
	discount := o.DiscountAmount(s)
	total := o.ComputedTotal(s)
	if s.State.HoldsPayment() && s.ChargeAmount.IsPositive() {
		total = s.ChargeAmount
	}
	return View{
		ID:                s.ID,
		State:             s.State,
		Lines:             s.Snapshot.Lines,
		Totals:            s.Totals,
		Coupon:            s.Coupon.Coupon,
		Discount:          discount,
		Total:             total,
		Addresses:         s.Addresses,
		SelectedAddressID: s.SelectedAddressID,
		GatewayOrderID:    s.GatewayOrderID,
		Failure:           s.Failure,
		LastOutcome:       s.LastOutcome,
		Display: Display{
			Subtotal:       s.Totals.Subtotal.Display(locale),
			MRPTotal:       s.Totals.MRPTotal.Display(locale),
			ProductSavings: s.Totals.ProductSavings.Display(locale),
			Discount:       discount.Display(locale),
			Total:          total.Display(locale),
		},
	}
}
