package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/application/ports"
)

// Compile-time check
var _ ports.BalanceCache = (*BalanceCache)(nil)

// BalanceCache caches wallet balances under wallet:balance:<id> with a
// short TTL. It is an optimization only; every miss or failure falls back
// to the store.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache creates a BalanceCache with the given TTL.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceKey(walletID string) string {
	return "wallet:balance:" + walletID
}

// Get returns the cached balance, reporting a miss as (zero, false, nil).
func (c *BalanceCache) Get(ctx context.Context, walletID string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, balanceKey(walletID)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("balance cache get: %w", err)
	}
	balance, err := decimal.NewFromString(val)
	if err != nil {
		// A corrupt entry behaves like a miss; the next Set repairs it.
		return decimal.Zero, false, fmt.Errorf("balance cache holds invalid value %q: %w", val, err)
	}
	return balance, true, nil
}

// Set overwrites the cached balance with the configured TTL.
func (c *BalanceCache) Set(ctx context.Context, walletID string, balance decimal.Decimal) error {
	if err := c.client.Set(ctx, balanceKey(walletID), balance.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("balance cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached balance.
func (c *BalanceCache) Invalidate(ctx context.Context, walletID string) error {
	if err := c.client.Del(ctx, balanceKey(walletID)).Err(); err != nil {
		return fmt.Errorf("balance cache invalidate: %w", err)
	}
	return nil
}
