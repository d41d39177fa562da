package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Compile-time check
var _ ports.Coordinator = (*Coordinator)(nil)

// Coordinator implements ports.Coordinator on pgx transactions.
//
// It injects the transaction into the context so every repository call made
// inside fn joins it, persists the staged outbox rows before committing, and
// attempts a best-effort publish after commit. The relay picks up whatever
// that attempt misses.
type Coordinator struct {
	pool      *pgxpool.Pool
	outbox    ports.OutboxRepository
	locker    ports.RequestLocker
	publisher ports.BusPublisher // nil means relay-only delivery
	logger    *slog.Logger
}

// NewCoordinator wires a Coordinator. publisher may be nil; the outbox relay
// then carries all deliveries.
func NewCoordinator(
	pool *pgxpool.Pool,
	outbox ports.OutboxRepository,
	locker ports.RequestLocker,
	publisher ports.BusPublisher,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		pool:      pool,
		outbox:    outbox,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
	}
}

// Execute runs fn inside a transaction together with its staged outbox rows.
func (c *Coordinator) Execute(ctx context.Context, opts ports.RunOptions, fn func(txCtx context.Context, buf *ports.EventBuffer) error) error {
	if opts.LockKey != "" && c.locker != nil {
		acquired, err := c.locker.Acquire(ctx, opts.LockKey, opts.LockTTL)
		if err != nil {
			// The lock is an optimization against duplicate work; the
			// idempotency record is the correctness guarantee.
			c.logger.WarnContext(ctx, "request lock unavailable",
				"key", opts.LockKey, "error", err)
		} else if !acquired {
			return domainErrors.ErrConcurrentRequest
		} else {
			defer func() {
				releaseCtx := context.WithoutCancel(ctx)
				if rerr := c.locker.Release(releaseCtx, opts.LockKey); rerr != nil {
					c.logger.WarnContext(ctx, "request lock release failed",
						"key", opts.LockKey, "error", rerr)
				}
			}()
		}
	}

	if hasTx(ctx) {
		// Already inside a transaction; join it. Events stage into the outer
		// Execute's buffer, which owns the outbox rows and the commit.
		buf := extractBuffer(ctx)
		if buf == nil {
			return fmt.Errorf("transaction context carries no event buffer")
		}
		return fn(ctx, buf)
	}

	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if opts.Isolation == ports.IsolationSerializable {
		txOpts.IsoLevel = pgx.Serializable
	}

	tx, err := c.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	buf := &ports.EventBuffer{}
	txCtx := injectBuffer(injectTx(ctx, tx), buf)

	if err := fn(txCtx, buf); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return classifyTxError(err)
	}

	for _, row := range buf.Rows() {
		if err := c.outbox.Insert(txCtx, row); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to stage outbox row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyTxError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	c.publishCommitted(ctx, buf.Rows())
	return nil
}

// publishCommitted pushes freshly committed rows to the bus immediately so
// consumers usually see events within milliseconds instead of waiting for
// the next relay tick. Failures are logged and left to the relay.
func (c *Coordinator) publishCommitted(ctx context.Context, rows []*entities.OutboxRow) {
	if c.publisher == nil || len(rows) == 0 {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	published := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if err := c.publisher.Publish(pubCtx, row.EventType(), row.Payload()); err != nil {
			metrics.OutboxPublishFailuresTotal.Inc()
			c.logger.WarnContext(ctx, "post-commit publish failed, relay will retry",
				"outbox_id", row.ID(), "event_type", row.EventType(), "error", err)
			continue
		}
		metrics.OutboxPublishedTotal.Inc()
		published = append(published, row.ID())
	}
	if len(published) == 0 {
		return
	}
	if err := c.outbox.MarkPublished(pubCtx, published); err != nil {
		// Rows stay unpublished and get re-sent by the relay; consumers
		// dedupe, so the duplicate is harmless.
		c.logger.WarnContext(ctx, "failed to mark outbox rows published", "error", err)
	}
}

// classifyTxError maps store-level conflicts onto the domain taxonomy so the
// shared retry policy recognizes them.
func classifyTxError(err error) error {
	if isSerializationFailure(err) {
		return domainErrors.NewConcurrencyError("transaction", "", err.Error())
	}
	return err
}
