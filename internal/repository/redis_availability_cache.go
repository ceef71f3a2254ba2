package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bakate/aeroreserve/internal/domain"
	pkgredis "github.com/bakate/aeroreserve/pkg/redis"
)

// DefaultAvailabilityTTL bounds staleness when a write-through is lost.
const DefaultAvailabilityTTL = 5 * time.Minute

// RedisAvailabilityCache implements AvailabilityCache using Redis. Each
// flight's availability map is stored as a single JSON document.
type RedisAvailabilityCache struct {
	client *pkgredis.Client
	ttl    time.Duration
}

// NewRedisAvailabilityCache creates a Redis-backed availability cache.
// A non-positive ttl falls back to DefaultAvailabilityTTL.
func NewRedisAvailabilityCache(client *pkgredis.Client, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = DefaultAvailabilityTTL
	}
	return &RedisAvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(flightID string) string {
	return fmt.Sprintf("inventory:availability:%s", flightID)
}

// Get returns the cached availability for a flight, or (nil, nil) on a
// cache miss.
func (c *RedisAvailabilityCache) Get(ctx context.Context, flightID string) (map[domain.CabinClass]*domain.SeatBucket, error) {
	raw, err := c.client.Get(ctx, availabilityKey(flightID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get availability for flight %s: %w", flightID, err)
	}

	var availability map[domain.CabinClass]*domain.SeatBucket
	if err := json.Unmarshal([]byte(raw), &availability); err != nil {
		return nil, fmt.Errorf("failed to decode cached availability: %w", err)
	}
	return availability, nil
}

// Set stores the availability snapshot for a flight.
func (c *RedisAvailabilityCache) Set(ctx context.Context, flightID string, availability map[domain.CabinClass]*domain.SeatBucket) error {
	payload, err := json.Marshal(availability)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}
	if err := c.client.Set(ctx, availabilityKey(flightID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set availability for flight %s: %w", flightID, err)
	}
	return nil
}

// Invalidate removes the cached snapshot for a flight.
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, flightID string) error {
	if err := c.client.Del(ctx, availabilityKey(flightID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate availability for flight %s: %w", flightID, err)
	}
	return nil
}

var _ AvailabilityCache = (*RedisAvailabilityCache)(nil)
