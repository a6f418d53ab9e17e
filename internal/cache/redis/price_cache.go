package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cardhawk/internal/domain"
)

// PriceCache is a read-through cache in front of a domain.PriceStore. Many
// listings in one run resolve to the same card, and reference snapshots move
// slowly, so repeated identical queries are served from Redis.
type PriceCache struct {
	rdb   *redis.Client
	inner domain.PriceStore
	ttl   time.Duration
}

var _ domain.PriceStore = (*PriceCache)(nil)

// NewPriceCache wraps inner with a Redis lookaside cache.
func NewPriceCache(c *Client, inner domain.PriceStore, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), inner: inner, ttl: ttl}
}

func refPriceKey(id domain.CardIdentity) string {
	sum := sha256.Sum256([]byte(id.Key()))
	return "refprice:" + hex.EncodeToString(sum[:16])
}

// Query returns the cached snapshots for the identity, falling back to the
// inner store on miss. Cache failures degrade to the inner store, never fail
// the query.
func (pc *PriceCache) Query(ctx context.Context, id domain.CardIdentity) ([]domain.ReferencePrice, error) {
	key := refPriceKey(id)

	if raw, err := pc.rdb.Get(ctx, key).Bytes(); err == nil {
		var refs []domain.ReferencePrice
		if jsonErr := json.Unmarshal(raw, &refs); jsonErr == nil {
			for i := range refs {
				refs[i].Identity = id
			}
			return refs, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		_ = pc.rdb.Del(ctx, key).Err()
	}

	refs, err := pc.inner.Query(ctx, id)
	if err != nil {
		return nil, err
	}

	// Best effort; a failed set just means the next query misses again.
	if raw, jsonErr := json.Marshal(refs); jsonErr == nil {
		_ = pc.rdb.Set(ctx, key, raw, pc.ttl).Err()
	}
	return refs, nil
}

// Invalidate drops the cached snapshots for one identity, used after seeding
// new reference prices.
func (pc *PriceCache) Invalidate(ctx context.Context, id domain.CardIdentity) error {
	if err := pc.rdb.Del(ctx, refPriceKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate prices for %s: %w", id.Key(), err)
	}
	return nil
}
