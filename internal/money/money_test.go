package money

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromMajorUnits(t *testing.T) {
	m, err := FromMajorUnits("1234.5", "inr")
	require.NoError(t, err)
	require.Equal(t, Money{Amount: 123450, Currency: "INR"}, m)

	m, err = FromMajorUnits("0.005", "INR")
	require.NoError(t, err)
	require.Equal(t, int64(1), m.Amount, "half rounds up")

	m, err = FromMajorUnits("1500", "JPY")
	require.NoError(t, err)
	require.Equal(t, int64(1500), m.Amount)

	_, err = FromMajorUnits("12,00", "INR")
	require.Error(t, err)
}

func TestSubClampsAtZero(t *testing.T) {
	a := New(500, "INR")
	b := New(700, "INR")

	diff, clamped := b.Sub(a)
	require.False(t, clamped)
	require.Equal(t, int64(200), diff.Amount)

	diff, clamped = a.Sub(b)
	require.True(t, clamped)
	require.Equal(t, int64(0), diff.Amount)
	require.Equal(t, "INR", diff.Currency)
}

func TestMulQtyAndAdd(t *testing.T) {
	line := New(1200, "INR").MulQty(2)
	require.Equal(t, int64(2400), line.Amount)
	require.True(t, New(1200, "INR").MulQty(0).IsZero())

	total := Money{}.Add(line).Add(New(500, "INR"))
	require.Equal(t, Money{Amount: 2900, Currency: "INR"}, total)
}

func TestPercentRoundsHalfUp(t *testing.T) {
	require.Equal(t, int64(580), New(2900, "INR").Percent(2000).Amount)
	// 12.5% of 5 paise is 0.625 -> 1
	require.Equal(t, int64(1), New(5, "INR").Percent(1250).Amount)
	// 10% of 5 paise is 0.5 -> 1
	require.Equal(t, int64(1), New(5, "INR").Percent(1000).Amount)
	// 10% of 4 paise is 0.4 -> 0
	require.Equal(t, int64(0), New(4, "INR").Percent(1000).Amount)
	require.True(t, New(100, "INR").Percent(0).IsZero())
}

func TestDisplay(t *testing.T) {
	require.Equal(t, "₹1,234.50", New(123450, "INR").Display("en"))
	require.Equal(t, "$0.05", New(5, "USD").Display("en-US"))
	require.Equal(t, "¥1,500", New(1500, "JPY").Display("en"))
	require.Equal(t, "-₹2.00", New(-200, "INR").Display("not a locale"))
	require.Equal(t, "₹1,23,456.78", New(12345678, "INR").Display("en-IN"))
}

func TestDisplayUsesLocaleDigits(t *testing.T) {
	out := New(12345, "INR").Display("ar")
	require.True(t, strings.HasPrefix(out, "₹"), out)
	require.False(t, strings.ContainsAny(out, "0123456789"), out)
	require.Contains(t, out, "١٢٣")
	require.Contains(t, out, "٤٥")
}

func TestMultiplicationSaturates(t *testing.T) {
	require.Equal(t, int64(math.MaxInt64), New(1<<62, "INR").MulQty(4).Amount)
	require.Equal(t, int64(math.MinInt64), New(-(1 << 62), "INR").MulQty(4).Amount)
	require.Equal(t, int64(math.MaxInt64), New(math.MaxInt64, "INR").Percent(20000).Amount)
	require.Equal(t, int64(math.MaxInt64/2+1), New(math.MaxInt64, "INR").Percent(5000).Amount)
}

func TestString(t *testing.T) {
	require.Equal(t, "INR 29.00", New(2900, "INR").String())
}
