// Package redis keeps short-lived checkout state in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/warung-pos/internal/domain/order"
)

const (
	keyPrefix = "pos:idempotency:"

	// pendingMarker holds a key while its checkout is running.
	pendingMarker = "\x00pending"

	// ReservationTTL bounds how long a crashed checkout can hold a key.
	ReservationTTL = 30 * time.Second
)

var _ order.IdempotencyStore = (*IdempotencyStore)(nil)

// releaseScript deletes a key only while it still holds the pending marker,
// so a remembered order id is never dropped.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdempotencyStore maps Idempotency-Key headers to the order they created.
//
// A key moves from absent to pending (Reserve) to an order id (Remember).
// Only the caller that reserved a key may remember or release it.
type IdempotencyStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewIdempotencyStore returns a store whose entries expire after ttl.
func NewIdempotencyStore(client redis.UniversalClient, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (string, bool, error) {
	k := keyPrefix + key
	ok, err := s.client.SetNX(ctx, k, pendingMarker, ReservationTTL).Result()
	if err != nil {
		return "", false, errors.Wrap(err, "reserve idempotency key")
	}
	if ok {
		return "", true, nil
	}

	id, err := s.client.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Released or expired in between; the caller retries.
		return "", false, nil
	case err != nil:
		return "", false, errors.Wrap(err, "get idempotency key")
	case id == pendingMarker:
		return "", false, nil
	}
	return id, false, nil
}

func (s *IdempotencyStore) Remember(ctx context.Context, key, orderID string) error {
	if err := s.client.Set(ctx, keyPrefix+key, orderID, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "set idempotency key")
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{keyPrefix + key}, pendingMarker).Err(); err != nil {
		return errors.Wrap(err, "release idempotency key")
	}
	return nil
}

// Ping reports whether Redis is reachable. Used as a readiness check.
func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
