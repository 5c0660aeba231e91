package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

// latestTTL bounds how long a stale latest-tick entry survives a dead
// pipeline.
const latestTTL = 5 * time.Minute

// TickCache implements domain.TickCache. The latest record per symbol is
// stored as JSON at key "tick:latest:{symbol}".
type TickCache struct {
	rdb *redis.Client
}

// NewTickCache creates a TickCache backed by the given Client.
func NewTickCache(c *Client) *TickCache {
	return &TickCache{rdb: c.Underlying()}
}

func tickKey(symbol string) string {
	return "tick:latest:" + strings.ToUpper(symbol)
}

// SetLatest stores rec as the most recent tick for its symbol.
func (tc *TickCache) SetLatest(ctx context.Context, rec domain.IndicatorRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: marshal tick %s: %w", rec.Symbol, err)
	}
	if err := tc.rdb.Set(ctx, tickKey(rec.Symbol), data, latestTTL).Err(); err != nil {
		return fmt.Errorf("redis: set tick %s: %w", rec.Symbol, err)
	}
	return nil
}

// GetLatest retrieves the most recent tick for symbol. It returns
// domain.ErrNotFound when no tick has been cached.
func (tc *TickCache) GetLatest(ctx context.Context, symbol string) (domain.IndicatorRecord, error) {
	data, err := tc.rdb.Get(ctx, tickKey(symbol)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.IndicatorRecord{}, domain.ErrNotFound
		}
		return domain.IndicatorRecord{}, fmt.Errorf("redis: get tick %s: %w", symbol, err)
	}

	var rec domain.IndicatorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.IndicatorRecord{}, fmt.Errorf("redis: unmarshal tick %s: %w", symbol, err)
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.TickCache = (*TickCache)(nil)
