package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Haleralex/walletcore/internal/application/ports"
)

// Compile-time checks
var (
	_ ports.ProcessedMarker  = (*FraudStore)(nil)
	_ ports.WithdrawalWindow = (*FraudStore)(nil)
)

// FraudStore holds the fraud consumer's shared state: processed-message
// markers under processed_event:<hash> and per-wallet withdrawal timestamps
// in the withdrawals:<id> sorted set.
type FraudStore struct {
	client *redis.Client
}

// NewFraudStore creates a FraudStore.
func NewFraudStore(client *redis.Client) *FraudStore {
	return &FraudStore{client: client}
}

// SetIfAbsent marks a message hash as processed. Returns false when the
// marker already existed, i.e. the message is a redelivery.
func (s *FraudStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("processed marker set: %w", err)
	}
	return ok, nil
}

// Delete clears a processed marker, re-arming dedup for a retried message.
func (s *FraudStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("processed marker delete: %w", err)
	}
	return nil
}

// Record adds a withdrawal timestamp to the wallet's sliding window, trims
// entries older than the window, refreshes the key TTL, and returns the
// resulting count. Score and member are both the timestamp so duplicate
// submissions at the same instant collapse to one entry.
func (s *FraudStore) Record(ctx context.Context, walletID string, at time.Time, window time.Duration) (int64, error) {
	key := "withdrawals:" + walletID
	nowScore := float64(at.UnixMilli())
	cutoff := at.Add(-window).UnixMilli()

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  nowScore,
		Member: strconv.FormatInt(at.UnixMilli(), 10),
	})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.Expire(ctx, key, window)
	card := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("withdrawal window record: %w", err)
	}
	return card.Val(), nil
}
