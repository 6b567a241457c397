package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

func distanceKey(siteID, counterpartID uint64) string {
	return fmt.Sprintf("distance:site:%d:counterpart:%d", siteID, counterpartID)
}

// CacheDistance stores km for the pair. A nil client makes it a no-op.
func (r *Repository) CacheDistance(ctx context.Context, siteID, counterpartID uint64, km decimal.Decimal) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Set(ctx, distanceKey(siteID, counterpartID), km.StringFixed(2), r.cacheTTL).Err()
}

// GetCachedDistance returns ErrCacheMiss when the pair is absent or unreadable.
func (r *Repository) GetCachedDistance(ctx context.Context, siteID, counterpartID uint64) (decimal.Decimal, error) {
	if r.rdb == nil {
		return decimal.Zero, ErrCacheMiss
	}
	key := distanceKey(siteID, counterpartID)
	str, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, ErrCacheMiss
	}
	if err != nil {
		return decimal.Zero, err
	}
	km, err := decimal.NewFromString(str)
	if err != nil {
		r.log.Warnw("discarding unreadable cached distance", "key", key, "value", str)
		return decimal.Zero, ErrCacheMiss
	}
	return km, nil
}
