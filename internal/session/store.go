package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-checkout/internal/cache"
	"github.com/noah-isme/toko-checkout/internal/checkout"
)

// ErrNotFound is returned when the session expired or never existed.
var ErrNotFound = checkout.ErrSessionNotFound

// Store persists checkout sessions in Redis with a sliding TTL.
type Store struct {
	client *redis.Client
	json   *cache.JSON
	prefix string
	ttl    time.Duration
}

// NewStore constructs a Store. Every Save extends the TTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Store{client: client, json: cache.NewJSON(client, ttl), prefix: "checkout:session:", ttl: ttl}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Load returns the session with id or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*checkout.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	var sess checkout.Session
	ok, err := s.json.Get(ctx, s.key(id), &sess)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Save writes the session and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sess *checkout.Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session: id is required")
	}
	return s.json.Set(ctx, s.key(sess.ID), sess)
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.json.Delete(ctx, s.key(id))
}

// TTL reports the remaining lifetime of a stored session.
func (s *Store) TTL(ctx context.Context, id string) (time.Duration, error) {
	return s.client.TTL(ctx, s.key(id)).Result()
}
