package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceCache is the read-through cache in front of wallet balances.
// Implementations degrade gracefully: a cache failure is never fatal to the
// business operation.
type BalanceCache interface {
	// Get returns (balance, true, nil) on a hit and (zero, false, nil) on a
	// miss.
	Get(ctx context.Context, walletID string) (decimal.Decimal, bool, error)

	// Set overwrites the cached balance with the standard TTL.
	Set(ctx context.Context, walletID string, balance decimal.Decimal) error

	// Invalidate drops the cached balance.
	Invalidate(ctx context.Context, walletID string) error
}

// RequestLocker is the distributed lock used to serialize duplicate
// requests across replicas. Acquire is atomic set-if-absent with TTL.
type RequestLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ProcessedMarker dedupes consumed bus messages. SetIfAbsent returns false
// when the key already existed, i.e. the message was processed before.
// Delete clears a marker so a scheduled redelivery is not treated as a
// duplicate.
type ProcessedMarker interface {
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// WithdrawalWindow is the sliding-window counter behind the
// rapid-withdrawals rule. Record adds a timestamp, trims entries older than
// window, refreshes the key TTL, and returns the resulting cardinality.
type WithdrawalWindow interface {
	Record(ctx context.Context, walletID string, at time.Time, window time.Duration) (int64, error)
}
