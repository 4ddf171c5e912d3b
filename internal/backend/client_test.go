package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/backend"
	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/money"
	"github.com/noah-isme/toko-checkout/internal/payment"
	"github.com/noah-isme/toko-checkout/internal/sandbox"
)

const secret = "sandbox-secret"

func newClient(url string) *backend.Client {
	return backend.New(backend.Config{
		BaseURL:      url,
		Timeout:      time.Second,
		MaxAttempts:  3,
		RetryBase:    time.Millisecond,
		MinRequests:  10,
		FailureRatio: 0.9,
		OpenFor:      time.Second,
		Currency:     "INR",
		Logger:       zerolog.Nop(),
	})
}

func newSandbox(t *testing.T) (*sandbox.Backend, *backend.Client) {
	t.Helper()
	sb := sandbox.New(sandbox.Options{Currency: "INR", Secret: secret, Logger: zerolog.Nop()})
	srv := httptest.NewServer(sb.Router())
	t.Cleanup(srv.Close)
	return sb, newClient(srv.URL)
}

func userCtx(token string) context.Context {
	return common.WithBearer(context.Background(), token)
}

func TestFetchCartAndAddresses(t *testing.T) {
	_, client := newSandbox(t)
	ctx := userCtx("tok-a")

	snap, err := client.FetchCart(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 2)
	require.Equal(t, "black/M", snap.Lines[0].VariantKey)
	totals := cart.Aggregate(snap)
	require.Equal(t, int64(2900), totals.Subtotal.Amount)
	require.Equal(t, int64(3100), totals.MRPTotal.Amount)

	addrs, err := client.ListAddresses(ctx)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	require.True(t, addrs[0].IsDefault)
}

func TestCartIsScopedByBearer(t *testing.T) {
	sb, client := newSandbox(t)
	sb.SetCart(common.Owner(userCtx("tok-b")), nil)

	snap, err := client.FetchCart(userCtx("tok-b"))
	require.NoError(t, err)
	require.True(t, snap.IsEmpty())

	snap, err = client.FetchCart(userCtx("tok-a"))
	require.NoError(t, err)
	require.False(t, snap.IsEmpty())
}

func TestValidateCoupon(t *testing.T) {
	_, client := newSandbox(t)
	ctx := userCtx("tok-a")

	res, err := client.ValidateCoupon(ctx, coupon.Request{Code: "SAVE20", OrderValue: money.New(2900, "INR"), ProductOccurrences: []string{"prod-tee", "prod-jeans", "prod-jeans"}})
	require.NoError(t, err)
	require.Equal(t, int64(2320), res.FinalAmount.Amount)

	_, err = client.ValidateCoupon(ctx, coupon.Request{Code: "OLD10", OrderValue: money.New(2900, "INR")})
	require.Equal(t, common.KindCollaborator, common.KindOf(err))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "Coupon expired", appErr.Message)

	_, err = client.ValidateCoupon(ctx, coupon.Request{Code: "JEANS15", OrderValue: money.New(500, "INR"), ProductOccurrences: []string{"prod-tee"}})
	require.Equal(t, common.KindCollaborator, common.KindOf(err))
}

func TestPaymentRoundTrip(t *testing.T) {
	sb, client := newSandbox(t)
	ctx := userCtx("tok-a")

	intent, err := client.CreatePayment(ctx, payment.IntentRequest{Amount: money.New(2320, "INR"), CouponCode: "SAVE20", CustomerName: "Asha", Email: "asha@example.com", AddressID: "addr-home"})
	require.NoError(t, err)
	require.NotEmpty(t, intent.GatewayOrderID)
	require.Equal(t, int64(2320), intent.Amount.Amount)

	cb, ok := sb.Pay(intent.GatewayOrderID)
	require.True(t, ok)

	bad := cb
	bad.Signature = "deadbeef"
	err = client.VerifyPayment(ctx, bad)
	require.Equal(t, common.KindCollaborator, common.KindOf(err))

	require.NoError(t, client.VerifyPayment(ctx, cb))
	require.Len(t, sb.Orders(common.Owner(ctx)), 1)

	err = client.VerifyPayment(ctx, cb)
	require.ErrorContains(t, err, "Payment already verified")

	snap, err := client.FetchCart(ctx)
	require.NoError(t, err)
	require.True(t, snap.IsEmpty())
}

func TestCreatePaymentRejectsUnknownAddress(t *testing.T) {
	_, client := newSandbox(t)
	_, err := client.CreatePayment(userCtx("tok-a"), payment.IntentRequest{Amount: money.New(100, "INR"), AddressID: "addr-nope"})
	require.Equal(t, common.KindCollaborator, common.KindOf(err))
}

func TestUnreachableBackendIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := newClient(url)
	_, err := client.FetchCart(context.Background())
	require.Equal(t, common.KindNetwork, common.KindOf(err))

	err = client.VerifyPayment(context.Background(), payment.Callback{GatewayOrderID: "order_abc", PaymentID: "pay_1", Signature: "sig"})
	require.Equal(t, common.KindNetwork, common.KindOf(err))
}

func TestRetriesOnlyIdempotentCalls(t *testing.T) {
	var cartCalls, verifyCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cart":
			if cartCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			common.JSON(w, http.StatusOK, map[string]any{"status": true, "data": map[string]any{"currency": "INR", "lines": []any{}}})
		case "/payments/verify":
			verifyCalls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(srv.Close)
	client := newClient(srv.URL)

	_, err := client.FetchCart(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), cartCalls.Load())

	err = client.VerifyPayment(context.Background(), payment.Callback{GatewayOrderID: "order_abc", PaymentID: "pay_1", Signature: "sig"})
	require.Equal(t, common.KindNetwork, common.KindOf(err))
	require.Equal(t, int32(1), verifyCalls.Load())
}

func TestVerifyRequiresOKFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		common.JSON(w, http.StatusOK, map[string]any{"status": true})
	}))
	t.Cleanup(srv.Close)

	err := newClient(srv.URL).VerifyPayment(context.Background(), payment.Callback{GatewayOrderID: "order_abc", PaymentID: "pay_1", Signature: "sig"})
	require.Equal(t, common.KindCollaborator, common.KindOf(err))
}
