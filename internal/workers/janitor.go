package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/Haleralex/walletcore/internal/application/ports"
)

// Janitor garbage-collects expired idempotency records and long-published
// outbox rows. Both deletes are safe to run from several replicas at once.
type Janitor struct {
	idempotency     ports.IdempotencyRepository
	outbox          ports.OutboxRepository
	interval        time.Duration
	idempotencyTTL  time.Duration
	outboxRetention time.Duration
	logger          *slog.Logger
}

// NewJanitor wires a janitor, defaulting unset parameters.
func NewJanitor(
	idempotency ports.IdempotencyRepository,
	outbox ports.OutboxRepository,
	interval time.Duration,
	idempotencyTTL time.Duration,
	outboxRetention time.Duration,
	logger *slog.Logger,
) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	if outboxRetention <= 0 {
		outboxRetention = 168 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		idempotency:     idempotency,
		outbox:          outbox,
		interval:        interval,
		idempotencyTTL:  idempotencyTTL,
		outboxRetention: outboxRetention,
		logger:          logger,
	}
}

// Run ticks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.logger.InfoContext(ctx, "janitor started", "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.InfoContext(ctx, "janitor stopped")
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *Janitor) tick(ctx context.Context) {
	now := time.Now().UTC()

	removed, err := j.idempotency.DeleteOlderThan(ctx, now.Add(-j.idempotencyTTL))
	if err != nil {
		j.logger.ErrorContext(ctx, "idempotency cleanup failed", "error", err)
	} else if removed > 0 {
		j.logger.InfoContext(ctx, "expired idempotency records removed", "count", removed)
	}

	removed, err = j.outbox.DeletePublishedBefore(ctx, now.Add(-j.outboxRetention))
	if err != nil {
		j.logger.ErrorContext(ctx, "outbox cleanup failed", "error", err)
	} else if removed > 0 {
		j.logger.InfoContext(ctx, "published outbox rows removed", "count", removed)
	}
}
