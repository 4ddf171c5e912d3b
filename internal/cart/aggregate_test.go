package cart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/money"
)

func inr(v int64) money.Money { return money.New(v, "INR") }

func twoLineSnapshot() Snapshot {
	return NewSnapshot("INR", []Line{
		{LineID: "l1", ProductID: "p1", UnitPrice: inr(500), UnitMRP: inr(700), Quantity: 1},
		{LineID: "l2", ProductID: "p2", UnitPrice: inr(1200), UnitMRP: inr(1200), Quantity: 2},
	})
}

func TestAggregateTwoLines(t *testing.T) {
	totals := Aggregate(twoLineSnapshot())
	require.Equal(t, 3, totals.TotalQuantity)
	require.Equal(t, int64(2900), totals.Subtotal.Amount)
	require.Equal(t, int64(3100), totals.MRPTotal.Amount)
	require.Equal(t, int64(200), totals.ProductSavings.Amount)
	require.Equal(t, "INR", totals.Subtotal.Currency)
}

func TestAggregateIsPure(t *testing.T) {
	snap := twoLineSnapshot()
	require.Equal(t, Aggregate(snap), Aggregate(snap))
}

func TestAggregateEmpty(t *testing.T) {
	totals := Aggregate(NewSnapshot("INR", nil))
	require.Zero(t, totals.TotalQuantity)
	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.MRPTotal.IsZero())
	require.True(t, totals.ProductSavings.IsZero())
}

func TestAggregateSavingsNeverNegative(t *testing.T) {
	snap := NewSnapshot("INR", []Line{
		{LineID: "l1", ProductID: "p1", UnitPrice: inr(900), UnitMRP: inr(800), Quantity: 1},
		{LineID: "l2", ProductID: "p2", UnitPrice: inr(100), UnitMRP: inr(150), Quantity: 2},
	})
	totals := Aggregate(snap)
	require.Equal(t, int64(1100), totals.Subtotal.Amount)
	require.Equal(t, int64(100), totals.ProductSavings.Amount)
	require.Len(t, Check(snap), 1)
}

func TestOccurrencesExpandQuantity(t *testing.T) {
	require.Equal(t, []string{"p1", "p2", "p2"}, Occurrences(twoLineSnapshot()))
}

func TestFingerprintIgnoresOrder(t *testing.T) {
	a := twoLineSnapshot()
	b := NewSnapshot("INR", []Line{a.Lines[1], a.Lines[0]})
	require.Equal(t, Fingerprint(a), Fingerprint(b))

	c := twoLineSnapshot()
	c.Lines[1].Quantity = 3
	require.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestCheckStock(t *testing.T) {
	stock := 1
	snap := NewSnapshot("INR", []Line{
		{LineID: "l1", ProductID: "p1", UnitPrice: inr(100), UnitMRP: inr(100), Quantity: 2, AvailableStock: &stock},
	})
	anomalies := Check(snap)
	require.Len(t, anomalies, 1)
	require.Equal(t, "l1", anomalies[0].LineID)
}

func TestVariantKey(t *testing.T) {
	require.Equal(t, "red/M", VariantKey(" red ", "M"))
	require.Equal(t, "M", VariantKey("", "M"))
	require.Equal(t, "", VariantKey("", ""))
}
