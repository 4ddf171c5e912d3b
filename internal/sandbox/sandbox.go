package sandbox

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/money"
	"github.com/noah-isme/toko-checkout/internal/payment"
)

// Line is a cart line as the backend stores it.
type Line struct {
	LineID         string `json:"lineId"`
	ProductID      string `json:"productId"`
	Title          string `json:"title,omitempty"`
	Color          string `json:"color,omitempty"`
	Size           string `json:"size,omitempty"`
	UnitPrice      int64  `json:"unitPrice"`
	UnitMRP        int64  `json:"unitMrp"`
	Quantity       int    `json:"quantity"`
	AvailableStock *int   `json:"availableStock,omitempty"`
}

// Address is a saved address as the backend stores it.
type Address struct {
	ID           string `json:"id"`
	ReceiverName string `json:"receiverName"`
	Line         string `json:"line"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	IsDefault    bool   `json:"isDefault,omitempty"`
}

// Coupon is a sandbox coupon rule. PercentBps is applied to the order value
// and capped at MaxDiscount when set.
type Coupon struct {
	Code               string
	Offer              string
	PercentBps         int64
	MaxDiscount        int64
	MinOrderValue      int64
	EligibleProductIDs []string
	Expired            bool
}

type intent struct {
	owner     string
	amount    int64
	currency  string
	paymentID string
	verified  bool
}

// Order is recorded when a payment verifies.
type Order struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	PaymentID      string `json:"paymentId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Lines          []Line `json:"lines"`
}

// Backend is an in-memory stand-in for the storefront backend. State is keyed
// by the caller's bearer-derived owner.
type Backend struct {
	mu        sync.Mutex
	currency  string
	signer    payment.Signer
	carts     map[string][]Line
	addresses map[string][]Address
	coupons   map[string]Coupon
	intents   map[string]*intent
	orders    map[string][]Order
	seedLines []Line
	seedAddrs []Address
	logger    zerolog.Logger
}

// Options configures a Backend.
type Options struct {
	Currency string
	Secret   string
	Logger   zerolog.Logger
}

// New constructs a Backend with the default catalogue of coupons and a seeded
// cart and address book for every new owner.
func New(opts Options) *Backend {
	stock := 5
	b := &Backend{
		currency:  money.NormaliseCurrency(opts.Currency),
		signer:    payment.Signer{Secret: opts.Secret},
		carts:     map[string][]Line{},
		addresses: map[string][]Address{},
		coupons:   map[string]Coupon{},
		intents:   map[string]*intent{},
		orders:    map[string][]Order{},
		logger:    opts.Logger,
		seedLines: []Line{
			{LineID: "line-1", ProductID: "prod-tee", Title: "Cotton Tee", Color: "black", Size: "M", UnitPrice: 500, UnitMRP: 700, Quantity: 1, AvailableStock: &stock},
			{LineID: "line-2", ProductID: "prod-jeans", Title: "Slim Jeans", Size: "32", UnitPrice: 1200, UnitMRP: 1200, Quantity: 2},
		},
		seedAddrs: []Address{
			{ID: "addr-home", ReceiverName: "Sandbox User", Line: "12 MG Road", City: "Bengaluru", PostalCode: "560001", IsDefault: true},
			{ID: "addr-work", ReceiverName: "Sandbox User", Line: "4 Residency Road", City: "Bengaluru", PostalCode: "560025"},
		},
	}
	b.AddCoupon(Coupon{Code: "SAVE20", Offer: "20% off your order", PercentBps: 2000})
	b.AddCoupon(Coupon{Code: "FLAT10", Offer: "10% off up to 100", PercentBps: 1000, MaxDiscount: 100})
	b.AddCoupon(Coupon{Code: "JEANS15", Offer: "15% off when you buy jeans", PercentBps: 1500, EligibleProductIDs: []string{"prod-jeans"}})
	b.AddCoupon(Coupon{Code: "BIGSPEND", Offer: "25% off orders above 5000", PercentBps: 2500, MinOrderValue: 5000})
	b.AddCoupon(Coupon{Code: "OLD10", Offer: "Expired promotion", PercentBps: 1000, Expired: true})
	return b
}

// AddCoupon registers or replaces a coupon rule.
func (b *Backend) AddCoupon(c Coupon) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	b.coupons[c.Code] = c
}

// SetCart replaces the owner's cart.
func (b *Backend) SetCart(owner string, lines []Line) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carts[owner] = append([]Line(nil), lines...)
}

// SetAddresses replaces the owner's address book.
func (b *Backend) SetAddresses(owner string, addrs []Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addresses[owner] = append([]Address(nil), addrs...)
}

// Orders returns the owner's recorded orders.
func (b *Backend) Orders(owner string) []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Order(nil), b.orders[owner]...)
}

// Pay simulates the gateway capturing payment for an order and returns the
// signed callback the widget would deliver.
func (b *Backend) Pay(gatewayOrderID string) (payment.Callback, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	in, ok := b.intents[gatewayOrderID]
	if !ok {
		return payment.Callback{}, false
	}
	if in.paymentID == "" {
		in.paymentID = "pay_" + shortID()
	}
	return payment.Callback{
		GatewayOrderID: gatewayOrderID,
		PaymentID:      in.paymentID,
		Signature:      b.signer.Sign(gatewayOrderID, in.paymentID),
	}, true
}

func (b *Backend) cartLocked(owner string) []Line {
	lines, ok := b.carts[owner]
	if !ok {
		lines = append([]Line(nil), b.seedLines...)
		b.carts[owner] = lines
	}
	return lines
}

func (b *Backend) addressesLocked(owner string) []Address {
	addrs, ok := b.addresses[owner]
	if !ok {
		addrs = append([]Address(nil), b.seedAddrs...)
		b.addresses[owner] = addrs
	}
	return addrs
}

// price returns the post-discount amount or the rejection message.
func (c Coupon) price(orderValue int64, occurrences []string) (int64, string) {
	if c.Expired {
		return 0, "Coupon expired"
	}
	if orderValue < c.MinOrderValue {
		return 0, "Order value too low for this coupon"
	}
	if len(c.EligibleProductIDs) > 0 && !anyEligible(c.EligibleProductIDs, occurrences) {
		return 0, "Coupon not applicable to items in your cart"
	}
	discount := money.New(orderValue, "").Percent(c.PercentBps).Amount
	if c.MaxDiscount > 0 && discount > c.MaxDiscount {
		discount = c.MaxDiscount
	}
	return orderValue - discount, ""
}

func anyEligible(eligible, occurrences []string) bool {
	set := make(map[string]struct{}, len(eligible))
	for _, id := range eligible {
		set[id] = struct{}{}
	}
	for _, id := range occurrences {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
