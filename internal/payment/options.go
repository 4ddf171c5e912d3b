package payment

import (
	"fmt"
	"strings"

	"github.com/noah-isme/toko-checkout/internal/money"
)

// Prefill seeds the gateway's checkout form.
type Prefill struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Options is what the storefront hands to the gateway's checkout widget.
type Options struct {
	KeyID          string            `json:"key"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	GatewayOrderID string            `json:"orderId"`
	Prefill        Prefill           `json:"prefill"`
	Notes          map[string]string `json:"notes,omitempty"`
	Display        string            `json:"display,omitempty"`
}

// OptionsConfig holds the merchant side of the checkout widget.
type OptionsConfig struct {
	KeyID     string
	StoreName string
	Locale    string
}

// BuildOptions assembles checkout options from a bound intent.
func BuildOptions(cfg OptionsConfig, intent Intent, req IntentRequest) Options {
	amount := intent.Amount
	if amount.Amount <= 0 {
		amount = req.Amount
	}
	store := strings.TrimSpace(cfg.StoreName)
	if store == "" {
		store = "Store"
	}
	opts := Options{
		KeyID:          cfg.KeyID,
		Amount:         amount.Amount,
		Currency:       money.NormaliseCurrency(amount.Currency),
		Name:           store,
		Description:    fmt.Sprintf("Order payment to %s", store),
		GatewayOrderID: intent.GatewayOrderID,
		Prefill:        Prefill{Name: req.CustomerName, Email: req.Email},
		Notes:          map[string]string{"addressId": req.AddressID},
		Display:        amount.Display(cfg.Locale),
	}
	if req.CouponCode != "" {
		opts.Notes["couponCode"] = req.CouponCode
	}
	return opts
}
