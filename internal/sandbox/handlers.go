package sandbox

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/payment"
)

// Router exposes the backend contract: every response is HTTP 200 carrying a
// status flag, except malformed requests.
func (b *Backend) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(common.BearerMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		common.JSON(w, http.StatusOK, map[string]any{"status": true})
	})
	r.Get("/cart", b.getCart)
	r.Put("/cart", b.putCart)
	r.Get("/addresses", b.getAddresses)
	r.Post("/coupons/apply", b.applyCoupon)
	r.Post("/payments/intent", b.createIntent)
	r.Post("/payments/verify", b.verify)
	r.Post("/gateway/pay", b.gatewayPay)
	r.Get("/orders", b.getOrders)
	return r
}

func ok(w http.ResponseWriter, data any) {
	common.JSON(w, http.StatusOK, map[string]any{"status": true, "data": data})
}

func reject(w http.ResponseWriter, message string) {
	common.JSON(w, http.StatusOK, map[string]any{"status": false, "message": message})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSON(w, http.StatusBadRequest, map[string]any{"status": false, "message": "invalid payload"})
		return false
	}
	return true
}

func (b *Backend) getCart(w http.ResponseWriter, r *http.Request) {
	owner := common.Owner(r.Context())
	b.mu.Lock()
	lines := append([]Line(nil), b.cartLocked(owner)...)
	b.mu.Unlock()
	ok(w, map[string]any{"currency": b.currency, "lines": lines})
}

func (b *Backend) putCart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Lines []Line `json:"lines"`
	}
	if !decode(w, r, &payload) {
		return
	}
	b.SetCart(common.Owner(r.Context()), payload.Lines)
	ok(w, map[string]any{"currency": b.currency, "lines": payload.Lines})
}

func (b *Backend) getAddresses(w http.ResponseWriter, r *http.Request) {
	owner := common.Owner(r.Context())
	b.mu.Lock()
	addrs := append([]Address(nil), b.addressesLocked(owner)...)
	b.mu.Unlock()
	ok(w, addrs)
}

func (b *Backend) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code               string   `json:"code"`
		OrderValue         int64    `json:"orderValue"`
		ProductOccurrences []string `json:"productOccurrences"`
	}
	if !decode(w, r, &payload) {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	b.mu.Lock()
	c, found := b.coupons[code]
	b.mu.Unlock()
	if !found {
		reject(w, "Invalid coupon code")
		return
	}
	final, reason := c.price(payload.OrderValue, payload.ProductOccurrences)
	if reason != "" {
		reject(w, reason)
		return
	}
	ok(w, map[string]any{
		"code":               c.Code,
		"offer":              c.Offer,
		"finalAmount":        final,
		"eligibleProductIds": c.EligibleProductIDs,
	})
}

func (b *Backend) createIntent(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount     int64  `json:"amount"`
		Currency   string `json:"currency"`
		CouponCode string `json:"couponCode"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		AddressID  string `json:"addressId"`
	}
	if !decode(w, r, &payload) {
		return
	}
	if payload.Amount <= 0 {
		reject(w, "Amount must be positive")
		return
	}
	owner := common.Owner(r.Context())
	b.mu.Lock()
	defer b.mu.Unlock()
	if !hasAddress(b.addressesLocked(owner), payload.AddressID) {
		reject(w, "Address not found")
		return
	}
	if len(b.cartLocked(owner)) == 0 {
		reject(w, "Cart is empty")
		return
	}
	id := "order_" + shortID()
	cur := payload.Currency
	if cur == "" {
		cur = b.currency
	}
	b.intents[id] = &intent{owner: owner, amount: payload.Amount, currency: cur}
	b.logger.Info().Str("gateway_order_id", id).Int64("amount", payload.Amount).Msg("sandbox_intent_created")
	ok(w, map[string]any{"gatewayOrderId": id, "amount": payload.Amount, "currency": cur})
}

func (b *Backend) verify(w http.ResponseWriter, r *http.Request) {
	var cb payment.Callback
	if !decode(w, r, &cb) {
		return
	}
	cb = cb.Normalise()
	notOK := func(msg string) {
		common.JSON(w, http.StatusOK, map[string]any{"status": false, "ok": false, "message": msg})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	in, found := b.intents[cb.GatewayOrderID]
	if !found {
		notOK("Unknown order")
		return
	}
	if !b.signer.Verify(cb) {
		notOK("Signature mismatch")
		return
	}
	if in.verified {
		b.logger.Warn().Str("gateway_order_id", cb.GatewayOrderID).Msg("sandbox_duplicate_verify")
		notOK("Payment already verified")
		return
	}
	in.verified = true
	in.paymentID = cb.PaymentID
	b.orders[in.owner] = append(b.orders[in.owner], Order{
		GatewayOrderID: cb.GatewayOrderID,
		PaymentID:      cb.PaymentID,
		Amount:         in.amount,
		Currency:       in.currency,
		Lines:          append([]Line(nil), b.cartLocked(in.owner)...),
	})
	b.carts[in.owner] = []Line{}
	common.JSON(w, http.StatusOK, map[string]any{"status": true, "ok": true})
}

func (b *Backend) gatewayPay(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		GatewayOrderID string `json:"gatewayOrderId"`
	}
	if !decode(w, r, &payload) {
		return
	}
	cb, found := b.Pay(strings.TrimSpace(payload.GatewayOrderID))
	if !found {
		reject(w, "Unknown order")
		return
	}
	ok(w, cb)
}

func (b *Backend) getOrders(w http.ResponseWriter, r *http.Request) {
	ok(w, b.Orders(common.Owner(r.Context())))
}

func hasAddress(addrs []Address, id string) bool {
	for _, a := range addrs {
		if a.ID == id {
			return true
		}
	}
	return false
}
