// Package wallet implements the single-wallet state-change path: deposits,
// withdrawals, admin transitions, balance reads and history listing, all
// with idempotency, row locking and event journaling.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/Haleralex/walletcore/internal/pkg/retry"
)

// EngineConfig carries the tunables of the wallet engine.
type EngineConfig struct {
	// DefaultCurrency is assigned to wallets auto-provisioned by deposit.
	DefaultCurrency valueobjects.Currency
	// RequestLockTTL bounds the distributed per-request lock.
	RequestLockTTL time.Duration
	// BalanceCacheTTL is informational here; the cache implementation owns
	// the actual TTL.
	BalanceCacheTTL time.Duration
	// HistoryPageLimit caps getHistory page sizes.
	HistoryPageLimit int
	// RetryPolicy is the shared transient-conflict policy.
	RetryPolicy retry.Policy
}

// Engine applies single-wallet operations. One instance is shared by the
// HTTP layer and the transfer saga engine.
type Engine struct {
	coordinator ports.Coordinator
	wallets     ports.WalletRepository
	journal     ports.EventRepository
	idempotency ports.IdempotencyRepository
	cache       ports.BalanceCache
	cfg         EngineConfig
	logger      *slog.Logger
}

// NewEngine wires a wallet engine.
func NewEngine(
	coordinator ports.Coordinator,
	wallets ports.WalletRepository,
	journal ports.EventRepository,
	idempotency ports.IdempotencyRepository,
	cache ports.BalanceCache,
	cfg EngineConfig,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryPageLimit <= 0 {
		cfg.HistoryPageLimit = 100
	}
	if cfg.RequestLockTTL <= 0 {
		cfg.RequestLockTTL = 60 * time.Second
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = retry.DefaultPolicy()
	}
	return &Engine{
		coordinator: coordinator,
		wallets:     wallets,
		journal:     journal,
		idempotency: idempotency,
		cache:       cache,
		cfg:         cfg,
		logger:      logger,
	}
}

// requestLockKey is the cache key guarding a request id across replicas.
func requestLockKey(requestID string) string {
	return "lock:req:" + requestID
}

// runOpts builds coordinator options; the distributed lock applies only
// when the client supplied a request id.
func (e *Engine) runOpts(requestID string) ports.RunOptions {
	opts := ports.RunOptions{}
	if requestID != "" {
		opts.LockKey = requestLockKey(requestID)
		opts.LockTTL = e.cfg.RequestLockTTL
	}
	return opts
}

// replay looks up a stored response for requestID and unmarshals it into
// out. Returns true on a hit; the caller returns the stored response
// without side effects.
func (e *Engine) replay(ctx context.Context, requestID string, out any) (bool, error) {
	if requestID == "" {
		return false, nil
	}
	rec, err := e.idempotency.Find(ctx, requestID)
	if err != nil {
		return false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if rec == nil {
		return false, nil
	}
	if err := json.Unmarshal(rec.Response(), out); err != nil {
		return false, fmt.Errorf("stored response for request %s is unreadable: %w", requestID, err)
	}
	return true, nil
}

// record persists the idempotency record inside the same transaction as the
// state change. Must be the last write of the transaction.
func (e *Engine) record(ctx context.Context, requestID string, response any) error {
	if requestID == "" {
		return nil
	}
	body, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("serialize idempotency response: %w", err)
	}
	return e.idempotency.Insert(ctx, entities.NewIdempotencyRecord(requestID, body))
}

// resolveDuplicate translates a lost idempotency-insert race into the
// winner's stored response.
func (e *Engine) resolveDuplicate(ctx context.Context, requestID string, out any) error {
	hit, err := e.replay(ctx, requestID, out)
	if err != nil {
		return err
	}
	if !hit {
		// The winner committed the record with the state change, so a miss
		// here means the record was garbage-collected mid-flight.
		return domainErrors.ErrConcurrentRequest
	}
	return nil
}

// writeBalanceCache is write-through and best-effort.
func (e *Engine) writeBalanceCache(ctx context.Context, walletID string, balance decimal.Decimal) {
	if err := e.cache.Set(ctx, walletID, balance); err != nil {
		e.logger.WarnContext(ctx, "balance cache write failed",
			"wallet_id", walletID, "error", err)
	}
}

// invalidateBalanceCache drops the cached balance, best-effort.
func (e *Engine) invalidateBalanceCache(ctx context.Context, walletID string) {
	if err := e.cache.Invalidate(ctx, walletID); err != nil {
		e.logger.WarnContext(ctx, "balance cache invalidation failed",
			"wallet_id", walletID, "error", err)
	}
}

// execute runs fn through the coordinator under the shared retry policy.
func (e *Engine) execute(ctx context.Context, requestID string, fn func(txCtx context.Context, buf *ports.EventBuffer) error) error {
	return retry.Do(ctx, e.cfg.RetryPolicy, func(ctx context.Context) error {
		return e.coordinator.Execute(ctx, e.runOpts(requestID), fn)
	})
}
