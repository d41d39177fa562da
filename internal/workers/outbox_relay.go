// Package workers holds the background loops: the outbox relay, the saga
// recovery sweep, and the janitor. Each loop runs on a ticker and guards
// itself with an in-process busy flag so a slow tick is skipped, not
// stacked; across replicas overlapping work is benign because every row and
// saga carries its own guard.
package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// OutboxRelay drains unpublished outbox rows to the event bus.
type OutboxRelay struct {
	outbox    ports.OutboxRepository
	publisher ports.BusPublisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	busy      atomic.Bool
}

// NewOutboxRelay wires a relay, defaulting unset parameters.
func NewOutboxRelay(
	outbox ports.OutboxRepository,
	publisher ports.BusPublisher,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *OutboxRelay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run ticks until ctx is cancelled. The first drain happens immediately so a
// restart does not sit on a backlog for a full interval.
func (r *OutboxRelay) Run(ctx context.Context) {
	r.logger.InfoContext(ctx, "outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	r.tick(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick drains one batch. A tick that finds the previous one still running
// returns immediately.
func (r *OutboxRelay) tick(ctx context.Context) {
	if !r.busy.CompareAndSwap(false, true) {
		return
	}
	defer r.busy.Store(false)

	rows, err := r.outbox.FindUnpublished(ctx, r.batchSize)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to load unpublished outbox rows", "error", err)
		return
	}
	metrics.OutboxPendingRows.Set(float64(len(rows)))
	if len(rows) == 0 {
		return
	}

	published := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if err := r.publisher.Publish(ctx, row.EventType(), row.Payload()); err != nil {
			metrics.OutboxPublishFailuresTotal.Inc()
			r.logger.ErrorContext(ctx, "outbox publish failed",
				"outbox_id", row.ID(), "event_type", string(row.EventType()), "error", err)
			// The row stays unpublished; the next tick retries it.
			continue
		}
		metrics.OutboxPublishedTotal.Inc()
		published = append(published, row.ID())
	}

	if len(published) == 0 {
		return
	}
	if err := r.outbox.MarkPublished(ctx, published); err != nil {
		// Rows will be republished next tick; consumers dedupe.
		r.logger.ErrorContext(ctx, "failed to mark outbox rows published",
			"count", len(published), "error", err)
		return
	}
	r.logger.DebugContext(ctx, "outbox batch relayed", "published", len(published), "scanned", len(rows))
}
