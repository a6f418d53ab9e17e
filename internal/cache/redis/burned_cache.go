package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cardhawk/internal/domain"
)

// BurnedCache implements domain.BurnedStore using Redis keys with a TTL.
// A burned fingerprint stays burned across process restarts until the TTL
// lapses, so a freshly restarted scraper does not immediately reuse an
// identity the marketplace just flagged.
type BurnedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.BurnedStore = (*BurnedCache)(nil)

// NewBurnedCache creates a BurnedCache backed by the given Client.
func NewBurnedCache(c *Client, ttl time.Duration) *BurnedCache {
	return &BurnedCache{rdb: c.Underlying(), ttl: ttl}
}

func burnKey(fingerprintID string) string {
	return "burned:" + fingerprintID
}

// Burn marks the fingerprint as burned for the cache TTL.
func (bc *BurnedCache) Burn(ctx context.Context, fingerprintID string) error {
	if err := bc.rdb.Set(ctx, burnKey(fingerprintID), "1", bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: burn fingerprint %s: %w", fingerprintID, err)
	}
	return nil
}

// IsBurned reports whether the fingerprint is currently burned.
func (bc *BurnedCache) IsBurned(ctx context.Context, fingerprintID string) (bool, error) {
	n, err := bc.rdb.Exists(ctx, burnKey(fingerprintID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check fingerprint %s: %w", fingerprintID, err)
	}
	return n > 0, nil
}
