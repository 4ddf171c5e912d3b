package cart

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/money"
)

// Line is one cart item as reported by the cart collaborator.
type Line struct {
	LineID         string      `json:"lineId"`
	ProductID      string      `json:"productId"`
	Title          string      `json:"title,omitempty"`
	VariantKey     string      `json:"variantKey,omitempty"`
	UnitPrice      money.Money `json:"unitPrice"`
	UnitMRP        money.Money `json:"unitMrp"`
	Quantity       int         `json:"quantity"`
	AvailableStock *int        `json:"availableStock,omitempty"`
}

// VariantKey joins the colour and size selections the storefront uses to
// distinguish variants of the same product.
func VariantKey(color, size string) string {
	color = strings.TrimSpace(color)
	size = strings.TrimSpace(size)
	switch {
	case color == "" && size == "":
		return ""
	case size == "":
		return color
	case color == "":
		return size
	default:
		return color + "/" + size
	}
}

// Snapshot is an immutable view of the cart for a single reconciliation pass.
// Line order is kept for display only.
type Snapshot struct {
	Currency string `json:"currency"`
	Lines    []Line `json:"lines"`
}

// NewSnapshot copies lines into a snapshot so later mutation of the input has no effect.
func NewSnapshot(currency string, lines []Line) Snapshot {
	cp := make([]Line, len(lines))
	copy(cp, lines)
	return Snapshot{Currency: money.NormaliseCurrency(currency), Lines: cp}
}

// IsEmpty reports whether the snapshot carries no purchasable quantity.
func (s Snapshot) IsEmpty() bool {
	for _, l := range s.Lines {
		if l.Quantity > 0 {
			return false
		}
	}
	return true
}

// Occurrences expands every line into Quantity repeated product ids so a
// quantity-aware eligibility check sees unit counts instead of line counts.
func Occurrences(s Snapshot) []string {
	out := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		for i := 0; i < l.Quantity; i++ {
			out = append(out, l.ProductID)
		}
	}
	return out
}

// Fingerprint identifies the priced content of the snapshot independent of
// line order. Two snapshots with equal fingerprints price identically.
func Fingerprint(s Snapshot) string {
	keys := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		if l.Quantity <= 0 {
			continue
		}
		keys = append(keys, fmt.Sprintf("%s|%s|%s|%d|%d|%d", l.LineID, l.ProductID, l.VariantKey, l.Quantity, l.UnitPrice.Amount, l.UnitMRP.Amount))
	}
	sort.Strings(keys)
	return common.Sha256Hex(money.NormaliseCurrency(s.Currency) + "\n" + strings.Join(keys, "\n"))
}

// Anomaly describes a line that violates a snapshot invariant.
type Anomaly struct {
	LineID string `json:"lineId"`
	Reason string `json:"reason"`
}

// Check reports lines whose quantity exceeds known stock, whose price exceeds
// MRP, or whose currency differs from the snapshot. The aggregate is still
// computable; callers log these.
func Check(s Snapshot) []Anomaly {
	var out []Anomaly
	cur := money.NormaliseCurrency(s.Currency)
	for _, l := range s.Lines {
		if l.Quantity < 1 {
			out = append(out, Anomaly{LineID: l.LineID, Reason: "quantity below one"})
		}
		if l.AvailableStock != nil && l.Quantity > *l.AvailableStock {
			out = append(out, Anomaly{LineID: l.LineID, Reason: fmt.Sprintf("quantity %d exceeds stock %d", l.Quantity, *l.AvailableStock)})
		}
		if l.UnitPrice.Amount > l.UnitMRP.Amount {
			out = append(out, Anomaly{LineID: l.LineID, Reason: "unit price above mrp"})
		}
		if l.UnitPrice.Currency != "" && money.NormaliseCurrency(l.UnitPrice.Currency) != cur {
			out = append(out, Anomaly{LineID: l.LineID, Reason: "currency mismatch"})
		}
	}
	return out
}
