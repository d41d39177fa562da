package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/events"
)

// Compile-time check
var _ ports.OutboxRepository = (*OutboxRepository)(nil)

// OutboxRepository implements ports.OutboxRepository. The partial index on
// (published, created_at) keeps the relay's scan cheap no matter how large
// the published backlog grows.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates an OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Insert stages a row, normally inside the business transaction.
func (r *OutboxRepository) Insert(ctx context.Context, row *entities.OutboxRow) error {
	q := getQuerier(ctx, r.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO outbox_events (id, aggregate_id, event_type, payload, published, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		row.ID(), row.AggregateID(), string(row.EventType()), row.Payload(), row.Published(), row.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox row: %w", err)
	}
	return nil
}

// FindUnpublished returns up to limit unpublished rows, oldest first, which
// preserves publish order per aggregate.
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*entities.OutboxRow, error) {
	q := getQuerier(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT id, aggregate_id, event_type, payload, published, created_at
		FROM outbox_events
		WHERE published = FALSE
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find unpublished outbox rows: %w", err)
	}
	defer rows.Close()

	var out []*entities.OutboxRow
	for rows.Next() {
		var (
			id          uuid.UUID
			aggregateID string
			eventType   string
			payload     []byte
			published   bool
			createdAt   time.Time
		)
		if err := rows.Scan(&id, &aggregateID, &eventType, &payload, &published, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		out = append(out, entities.ReconstructOutboxRow(
			id, aggregateID, events.EventType(eventType), payload, published, createdAt,
		))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox rows: %w", err)
	}
	return out, nil
}

// MarkPublished flips published for all ids in one statement.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	q := getQuerier(ctx, r.pool)

	_, err := q.Exec(ctx, `UPDATE outbox_events SET published = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to mark outbox rows published: %w", err)
	}
	return nil
}

// DeletePublishedBefore removes long-published rows.
func (r *OutboxRepository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := getQuerier(ctx, r.pool)

	result, err := q.Exec(ctx,
		`DELETE FROM outbox_events WHERE published = TRUE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete published outbox rows: %w", err)
	}
	return result.RowsAffected(), nil
}
