package cart

import "github.com/noah-isme/toko-checkout/internal/money"

// Totals aggregates the computed pricing components of a snapshot.
type Totals struct {
	TotalQuantity  int         `json:"totalQuantity"`
	Subtotal       money.Money `json:"subtotal"`
	MRPTotal       money.Money `json:"mrpTotal"`
	ProductSavings money.Money `json:"productSavings"`
}

// Aggregate computes totals in a single pass. An empty snapshot yields zero
// totals. A line priced above its MRP contributes its price as MRP so savings
// never go negative; Check reports such lines.
func Aggregate(s Snapshot) Totals {
	cur := money.NormaliseCurrency(s.Currency)
	subtotal := money.Zero(cur)
	mrpTotal := money.Zero(cur)
	qty := 0
	for _, l := range s.Lines {
		if l.Quantity <= 0 {
			continue
		}
		qty += l.Quantity
		price := money.New(l.UnitPrice.Amount, cur).MulQty(l.Quantity)
		mrp := money.New(l.UnitMRP.Amount, cur).MulQty(l.Quantity).Max(price)
		subtotal = subtotal.Add(price)
		mrpTotal = mrpTotal.Add(mrp)
	}
	savings, _ := mrpTotal.Sub(subtotal)
	return Totals{
		TotalQuantity:  qty,
		Subtotal:       subtotal,
		MRPTotal:       mrpTotal,
		ProductSavings: savings,
	}
}
