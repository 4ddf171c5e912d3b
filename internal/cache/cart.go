package cache

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/common"
)

// CartFetcher loads the caller's cart from the cart collaborator.
type CartFetcher interface {
	FetchCart(ctx context.Context) (cart.Snapshot, error)
}

// CartCache serves cart snapshots from Redis, falling back to the collaborator.
// Cache failures degrade to a direct fetch.
type CartCache struct {
	Store  *JSON
	Source CartFetcher
	Logger zerolog.Logger
}

// FetchCart returns the cached snapshot for the caller or fetches and caches it.
func (c *CartCache) FetchCart(ctx context.Context) (cart.Snapshot, error) {
	key := KeyCart(common.Owner(ctx))
	var snap cart.Snapshot
	hit, err := c.Store.Get(ctx, key, &snap)
	if err != nil {
		c.Logger.Warn().Err(err).Str("key", key).Msg("cart_cache_read_failed")
	}
	if hit {
		return snap, nil
	}
	snap, err = c.Source.FetchCart(ctx)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if err := c.Store.Set(ctx, key, snap); err != nil {
		c.Logger.Warn().Err(err).Str("key", key).Msg("cart_cache_write_failed")
	}
	return snap, nil
}

// Fresh bypasses the cache and refreshes it from the collaborator.
func (c *CartCache) Fresh(ctx context.Context) (cart.Snapshot, error) {
	snap, err := c.Source.FetchCart(ctx)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if err := c.Store.Set(ctx, KeyCart(common.Owner(ctx)), snap); err != nil {
		c.Logger.Warn().Err(err).Msg("cart_cache_write_failed")
	}
	return snap, nil
}

// InvalidateOwner drops the cached cart and orders for owner.
func (c *CartCache) InvalidateOwner(ctx context.Context, owner string) error {
	return c.Store.Delete(ctx, KeyCart(owner), KeyOrders(owner))
}
