package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
)

// Compile-time check
var _ ports.IdempotencyRepository = (*IdempotencyRepository)(nil)

// IdempotencyRepository implements ports.IdempotencyRepository.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepository creates an IdempotencyRepository.
func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Find returns the record for requestID, or (nil, nil) when absent.
func (r *IdempotencyRepository) Find(ctx context.Context, requestID string) (*entities.IdempotencyRecord, error) {
	q := getQuerier(ctx, r.pool)

	var (
		response  []byte
		createdAt time.Time
	)
	err := q.QueryRow(ctx,
		`SELECT response, created_at FROM idempotency_keys WHERE request_id = $1`,
		requestID,
	).Scan(&response, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find idempotency record: %w", err)
	}
	return entities.ReconstructIdempotencyRecord(requestID, response, createdAt), nil
}

// Insert stores a record. Losing the primary-key race means another request
// with the same id already committed; the caller serves its response.
func (r *IdempotencyRepository) Insert(ctx context.Context, record *entities.IdempotencyRecord) error {
	q := getQuerier(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO idempotency_keys (request_id, response, created_at) VALUES ($1, $2, $3)`,
		record.RequestID(), record.Response(), record.CreatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "idempotency_keys_pkey") {
			return domainErrors.ErrDuplicateRequest
		}
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	return nil
}

// DeleteOlderThan garbage-collects expired records.
func (r *IdempotencyRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	q := getQuerier(ctx, r.pool)

	result, err := q.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}
	return result.RowsAffected(), nil
}
