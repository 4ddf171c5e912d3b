package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/resilience"
)

func TestBreakerMetricsTransitions(t *testing.T) {
	const target = "backend_payment_verify"
	c := newClock()
	breaker := resilience.NewBreaker(resilience.Settings{Target: target, MinRequests: 1, OpenFor: 20 * time.Millisecond, Now: c.Now})
	ctx := context.Background()
	gauge := func() float64 { return testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)) }

	require.Zero(t, gauge())
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, 1.0, gauge())

	c.Advance(20 * time.Millisecond)
	require.True(t, breaker.Allow(ctx))
	require.Equal(t, 2.0, gauge())

	breaker.Report(ctx, true)
	require.Zero(t, gauge())

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues(target)))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, "half_open", "closed")))
}
