package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type ctxKey string

const bearerKey ctxKey = "auth/bearer"

// WithBearer stores the caller's bearer token so collaborator calls can forward it.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey, token)
}

// Bearer extracts the forwarded bearer token from the context if present.
func Bearer(ctx context.Context) (string, bool) {
	v := ctx.Value(bearerKey)
	if v == nil {
		return "", false
	}
	token, ok := v.(string)
	return token, ok && token != ""
}

// BearerMiddleware copies the Authorization bearer token onto the request context.
// Authentication itself happens in the backend; this service only relays the token.
func BearerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && strings.TrimSpace(token) != "" {
			r = r.WithContext(WithBearer(r.Context(), strings.TrimSpace(token)))
		}
		next.ServeHTTP(w, r)
	})
}

// Owner derives a stable, non-reversible cache scope for the caller from the
// forwarded bearer token. Callers without a token share the "anonymous" scope.
func Owner(ctx context.Context) string {
	token, ok := Bearer(ctx)
	if !ok {
		return "anonymous"
	}
	return Sha256Hex(token)[:32]
}

// Sha256Hex returns the lowercase hex SHA-256 digest of input.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
