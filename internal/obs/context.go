package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routePatternKey is the context key storing matched route pattern.
type routePatternKey struct{}

type sessionHolder struct{ id string }

type sessionKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

// SessionMiddleware exposes the {id} URL parameter of checkout routes to the
// request logger. The holder is filled after routing, so it is read back once
// the handler returns.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := r.Context().Value(sessionKey{}).(*sessionHolder); ok {
			if id := chi.URLParam(r, "id"); id != "" {
				h.id = id
			}
		}
		next.ServeHTTP(w, r)
	})
}

// WithSessionSlot installs an empty session holder on the context.
func WithSessionSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, &sessionHolder{})
}

// SessionIDFromContext returns the checkout session id recorded for the request.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if h, ok := ctx.Value(sessionKey{}).(*sessionHolder); ok {
		return h.id
	}
	return ""
}
