package payment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/money"
)

func TestSignerRoundTrip(t *testing.T) {
	s := Signer{Secret: "shh"}
	sig := s.Sign("order_abc", "pay_1")
	require.Len(t, sig, 64)

	require.True(t, s.Verify(Callback{GatewayOrderID: " order_abc ", PaymentID: "pay_1", Signature: sig}))
	require.False(t, s.Verify(Callback{GatewayOrderID: "order_abc", PaymentID: "pay_2", Signature: sig}))
	require.False(t, Signer{}.Verify(Callback{GatewayOrderID: "order_abc", PaymentID: "pay_1", Signature: sig}))
}

func TestBuildOptions(t *testing.T) {
	req := IntentRequest{
		Amount:       money.New(2320, "INR"),
		CouponCode:   "SAVE20",
		CustomerName: "Asha",
		Email:        "asha@example.com",
		AddressID:    "addr-1",
	}
	intent := Intent{GatewayOrderID: "order_abc", Amount: money.New(2320, "INR")}

	opts := BuildOptions(OptionsConfig{KeyID: "key_test", StoreName: "Toko", Locale: "en"}, intent, req)
	require.Equal(t, "key_test", opts.KeyID)
	require.Equal(t, int64(2320), opts.Amount)
	require.Equal(t, "INR", opts.Currency)
	require.Equal(t, "order_abc", opts.GatewayOrderID)
	require.Equal(t, "addr-1", opts.Notes["addressId"])
	require.Equal(t, "SAVE20", opts.Notes["couponCode"])
	require.Equal(t, "₹23.20", opts.Display)
	require.Equal(t, Prefill{Name: "Asha", Email: "asha@example.com"}, opts.Prefill)
}

func TestFailureMessage(t *testing.T) {
	require.Equal(t, "Card declined", Failure{Code: "BAD_REQUEST", Description: "Card declined"}.Message())
	require.Equal(t, "payment failed", Failure{}.Message())
}
