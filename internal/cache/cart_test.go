package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/money"
)

type countingFetcher struct {
	calls int
	snap  cart.Snapshot
	err   error
}

func (f *countingFetcher) FetchCart(context.Context) (cart.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

func setup(t *testing.T) (*miniredis.Miniredis, *JSON) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewJSON(client, time.Minute)
}

func TestCartCacheHitsAfterFirstFetch(t *testing.T) {
	_, store := setup(t)
	src := &countingFetcher{snap: cart.NewSnapshot("INR", []cart.Line{
		{LineID: "l1", ProductID: "p1", UnitPrice: money.New(500, "INR"), UnitMRP: money.New(700, "INR"), Quantity: 1},
	})}
	c := &CartCache{Store: store, Source: src, Logger: zerolog.Nop()}
	ctx := common.WithBearer(context.Background(), "tok")

	first, err := c.FetchCart(ctx)
	require.NoError(t, err)
	second, err := c.FetchCart(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)
	require.Equal(t, cart.Fingerprint(first), cart.Fingerprint(second))

	_, err = c.Fresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestCartCacheInvalidateOwner(t *testing.T) {
	mr, store := setup(t)
	src := &countingFetcher{snap: cart.NewSnapshot("INR", nil)}
	c := &CartCache{Store: store, Source: src, Logger: zerolog.Nop()}
	ctx := common.WithBearer(context.Background(), "tok")
	owner := common.Owner(ctx)

	_, err := c.FetchCart(ctx)
	require.NoError(t, err)
	require.NoError(t, mr.Set(KeyOrders(owner), "[]"))
	require.True(t, mr.Exists(KeyCart(owner)))

	require.NoError(t, c.InvalidateOwner(ctx, owner))
	require.False(t, mr.Exists(KeyCart(owner)))
	require.False(t, mr.Exists(KeyOrders(owner)))
}

func TestCartCacheDoesNotStoreFailures(t *testing.T) {
	mr, store := setup(t)
	src := &countingFetcher{err: errors.New("backend down")}
	c := &CartCache{Store: store, Source: src, Logger: zerolog.Nop()}

	_, err := c.FetchCart(context.Background())
	require.Error(t, err)
	require.False(t, mr.Exists(KeyCart("anonymous")))
}
