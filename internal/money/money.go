package money

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used when an amount arrives without a currency code.
const DefaultCurrency = "INR"

// Money represents a monetary value stored in integer minor units (paise, cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New builds a Money value, normalising the currency code.
func New(amount int64, code string) Money {
	return Money{Amount: amount, Currency: NormaliseCurrency(code)}
}

// Zero returns a zero amount in the provided currency.
func Zero(code string) Money {
	return New(0, code)
}

// NormaliseCurrency upper-cases and trims an ISO-4217 code, defaulting to DefaultCurrency.
func NormaliseCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// Exponent reports the number of minor-unit digits used by the currency.
func Exponent(code string) int32 {
	unit, err := currency.ParseISO(NormaliseCurrency(code))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// FromMajorUnits parses a decimal major-unit string ("1234.5") into minor units,
// rounding half-up at the currency's minor-unit precision.
func FromMajorUnits(value, code string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", value, err)
	}
	minor := d.Shift(Exponent(code)).Round(0)
	if !minor.IsInteger() {
		return Money{}, fmt.Errorf("money: %q is not representable in minor units", value)
	}
	return New(minor.IntPart(), code), nil
}

// Add returns m+o. The receiver's currency wins; an empty receiver adopts o's.
func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.pick(o)}
}

// Sub returns m-o floored at zero. clamped reports whether the floor was applied
// so callers can log the anomaly instead of silently losing it.
func (m Money) Sub(o Money) (result Money, clamped bool) {
	diff := m.Amount - o.Amount
	if diff < 0 {
		return Money{Amount: 0, Currency: m.pick(o)}, true
	}
	return Money{Amount: diff, Currency: m.pick(o)}, false
}

// MulQty multiplies the amount by a quantity. Non-positive quantities yield
// zero; a product outside int64 saturates at the nearest bound.
func (m Money) MulQty(n int) Money {
	if n <= 0 {
		return Money{Currency: m.Currency}
	}
	product := decimal.NewFromInt(m.Amount).Mul(decimal.NewFromInt(int64(n)))
	return Money{Amount: saturate(product), Currency: m.Currency}
}

// Percent returns bps basis points (10000 = 100%) of m, rounded half-up to the
// nearest minor unit and saturated like MulQty.
func (m Money) Percent(bps int64) Money {
	if bps <= 0 || m.Amount == 0 {
		return Money{Currency: m.Currency}
	}
	share := decimal.NewFromInt(m.Amount).Mul(decimal.NewFromInt(bps)).Shift(-4).Round(0)
	return Money{Amount: saturate(share), Currency: m.Currency}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// GreaterThan compares amounts, ignoring currency.
func (m Money) GreaterThan(o Money) bool { return m.Amount > o.Amount }

// Max returns the larger of m and o.
func (m Money) Max(o Money) Money {
	if o.Amount > m.Amount {
		return Money{Amount: o.Amount, Currency: m.pick(o)}
	}
	return m
}

// Decimal returns the exact major-unit value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -Exponent(m.Currency))
}

// String renders "INR 1234.50" for logs.
func (m Money) String() string {
	code := NormaliseCurrency(m.Currency)
	return code + " " + m.Decimal().StringFixed(Exponent(code))
}

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

func saturate(d decimal.Decimal) int64 {
	switch {
	case d.GreaterThan(maxAmount):
		return math.MaxInt64
	case d.LessThan(minAmount):
		return math.MinInt64
	}
	return d.IntPart()
}

func (m Money) pick(o Money) string {
	if m.Currency != "" {
		return m.Currency
	}
	return o.Currency
}
