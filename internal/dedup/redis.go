package dedup

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// SetNXer is the slice of a Redis client the index needs.
type SetNXer interface {
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Close() error
}

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

// Redis is an Index shared by several engine processes working one run.
// Keys are hashed with xxhash so stored entries stay a fixed size.
type Redis struct {
	store  SetNXer
	prefix string
	ttl    time.Duration
}

// NewRedis connects to addr. Entries live under prefix+runID and expire
// after ttl.
func NewRedis(addr, prefix, runID string, ttl time.Duration) *Redis {
	return NewRedisWithStore(&redisStore{client: redis.NewClient(&redis.Options{Addr: addr})}, prefix, runID, ttl)
}

// NewRedisWithStore builds the index over a custom store (tests).
func NewRedisWithStore(store SetNXer, prefix, runID string, ttl time.Duration) *Redis {
	return &Redis{store: store, prefix: prefix + runID + ":", ttl: ttl}
}

func (r *Redis) Admit(ctx context.Context, key string) (bool, error) {
	return r.store.SetNX(ctx, r.prefix+Fingerprint(key), "1", r.ttl)
}

func (r *Redis) Close() error {
	return r.store.Close()
}

// Fingerprint is the hex xxhash64 of a dedup key.
func Fingerprint(key string) string {
	return strconv.FormatUint(xxhash.Sum64String(key), 16)
}
