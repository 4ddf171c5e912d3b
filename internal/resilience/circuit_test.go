package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/resilience"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *clock { return &clock{now: time.Unix(1_700_000_000, 0)} }

func settings(c *clock) resilience.Settings {
	return resilience.Settings{Target: "backend_cart", MinRequests: 2, FailureRatio: 0.5, OpenFor: time.Second, Now: c.Now}
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	c := newClock()
	breaker := resilience.NewBreaker(settings(c))
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Closed, breaker.State(), "below the minimum request count")
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.Equal(t, resilience.Open, breaker.State())
	require.False(t, breaker.Allow(ctx))

	c.Advance(time.Second)
	require.True(t, breaker.Allow(ctx), "cool-off elapsed")
	require.Equal(t, resilience.HalfOpen, breaker.State())
	require.False(t, breaker.Allow(ctx), "one probe at a time")

	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())
	require.True(t, breaker.Allow(ctx))
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	c := newClock()
	breaker := resilience.NewBreaker(settings(c))
	ctx := context.Background()

	breaker.Report(ctx, false)
	breaker.Report(ctx, false)
	c.Advance(time.Second)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.Equal(t, resilience.Open, breaker.State())
	require.False(t, breaker.Allow(ctx))
}

func TestBreakerWindowForgetsOldFailures(t *testing.T) {
	c := newClock()
	s := settings(c)
	s.MinRequests = 3
	s.Window = 10 * time.Second
	breaker := resilience.NewBreaker(s)
	ctx := context.Background()

	breaker.Report(ctx, false)
	breaker.Report(ctx, false)
	c.Advance(10 * time.Second)
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestNilBreakerAllows(t *testing.T) {
	var breaker *resilience.Breaker
	require.True(t, breaker.Allow(context.Background()))
	breaker.Report(context.Background(), false)
	require.Equal(t, "default", breaker.Target())
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))

	d := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-(base*2/5))
	require.LessOrEqual(t, d, base*2+(base*2/5))
}
