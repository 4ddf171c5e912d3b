package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Ulule adapts a ulule/limiter store to Allower. The window and max given to
// Allow define the rate for that call.
type Ulule struct {
	Store limiter.Store
}

// NewUluleRedis builds a Ulule limiter storing counters in Redis.
func NewUluleRedis(client *redis.Client, prefix string) (Ulule, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return Ulule{}, err
	}
	return Ulule{Store: store}, nil
}

// Allow implements Allower using a fixed window.
func (u Ulule) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if u.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	l := limiter.New(u.Store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := l.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
