package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Haleralex/walletcore/internal/application/ports"
)

// Compile-time check
var _ ports.RequestLocker = (*RequestLocker)(nil)

// RequestLocker serializes duplicate requests across replicas with
// SET NX + TTL. The TTL caps how long a crashed holder can block the key.
type RequestLocker struct {
	client *redis.Client
}

// NewRequestLocker creates a RequestLocker.
func NewRequestLocker(client *redis.Client) *RequestLocker {
	return &RequestLocker{client: client}
}

// Acquire attempts an atomic set-if-absent.
func (l *RequestLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	ok, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("request lock acquire: %w", err)
	}
	return ok, nil
}

// Release drops the lock early instead of waiting for the TTL.
func (l *RequestLocker) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("request lock release: %w", err)
	}
	return nil
}
