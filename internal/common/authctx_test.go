package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBearerMiddlewareRelaysToken(t *testing.T) {
	var got string
	h := BearerMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = Bearer(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer  tok-123 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "tok-123", got)
}

func TestOwnerScopes(t *testing.T) {
	require.Equal(t, "anonymous", Owner(context.Background()))
	a := Owner(WithBearer(context.Background(), "tok-a"))
	b := Owner(WithBearer(context.Background(), "tok-b"))
	require.Len(t, a, 32)
	require.NotEqual(t, a, b)
	require.Equal(t, a, Owner(WithBearer(context.Background(), "tok-a")))
}
