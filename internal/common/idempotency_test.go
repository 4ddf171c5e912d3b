package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIdemRejectsReplay(t *testing.T) {
	idem := Idem{R: newRedis(t), TTL: time.Minute}
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sessions/abc/payment", nil)
	req.Header.Set("Idempotency-Key", "k-1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.Clone(req.Context()))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.Clone(req.Context()))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 1, calls)
}

func TestIdemReleasesKeyOnServerError(t *testing.T) {
	idem := Idem{R: newRedis(t), TTL: time.Minute}
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Idempotency-Key", "k-2")

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req.Clone(req.Context()))
		require.Equal(t, http.StatusBadGateway, rec.Code)
	}
	require.Equal(t, 2, calls)
}

func TestIdemReleasesKeyOnClientError(t *testing.T) {
	cases := []struct {
		status int
		calls  int
	}{
		{http.StatusBadRequest, 2},
		{http.StatusUnprocessableEntity, 2},
		{http.StatusConflict, 1},
		{http.StatusAccepted, 1},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			idem := Idem{R: newRedis(t), TTL: time.Minute}
			calls := 0
			h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tc.status)
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sessions/abc/coupon", nil)
			req.Header.Set("Idempotency-Key", "k-3")

			for i := 0; i < 2; i++ {
				h.ServeHTTP(httptest.NewRecorder(), req.Clone(req.Context()))
			}
			require.Equal(t, tc.calls, calls)
		})
	}
}

func TestIdemWithoutHeaderPassesThrough(t *testing.T) {
	idem := Idem{R: newRedis(t)}
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))
	}
	require.Equal(t, 2, calls)
}
