package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.SagaRepository = (*SagaRepository)(nil)

// SagaRepository implements ports.SagaRepository.
type SagaRepository struct {
	pool *pgxpool.Pool
}

// NewSagaRepository creates a SagaRepository.
func NewSagaRepository(pool *pgxpool.Pool) *SagaRepository {
	return &SagaRepository{pool: pool}
}

const sagaColumns = `
	id, from_wallet_id, to_wallet_id, currency, amount::text,
	state, metadata, created_at, updated_at`

// Insert creates a saga row in its initial state.
func (r *SagaRepository) Insert(ctx context.Context, saga *entities.TransferSaga) error {
	q := getQuerier(ctx, r.pool)

	metadata, err := json.Marshal(saga.Metadata())
	if err != nil {
		return fmt.Errorf("failed to serialize saga metadata: %w", err)
	}

	query := `
		INSERT INTO transfer_sagas (
			id, from_wallet_id, to_wallet_id, currency, amount,
			state, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = q.Exec(ctx, query,
		saga.ID(),
		saga.FromWalletID(),
		saga.ToWalletID(),
		saga.Amount().Currency().Code(),
		saga.Amount().StringFixed(),
		string(saga.State()),
		metadata,
		saga.CreatedAt(),
		saga.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer saga: %w", err)
	}
	return nil
}

// FindByID loads a saga without locking.
func (r *SagaRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.TransferSaga, error) {
	q := getQuerier(ctx, r.pool)
	query := `SELECT` + sagaColumns + ` FROM transfer_sagas WHERE id = $1`
	return scanSaga(q.QueryRow(ctx, query, id))
}

// FindByIDForUpdate loads a saga under FOR UPDATE inside a transaction. The
// row lock serializes state transitions between the saga engine and the
// recovery loop.
func (r *SagaRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.TransferSaga, error) {
	if !hasTx(ctx) {
		return nil, fmt.Errorf("FindByIDForUpdate requires a transaction")
	}
	q := getQuerier(ctx, r.pool)
	query := `SELECT` + sagaColumns + ` FROM transfer_sagas WHERE id = $1 FOR UPDATE`
	return scanSaga(q.QueryRow(ctx, query, id))
}

// Update persists a saga's state and metadata.
func (r *SagaRepository) Update(ctx context.Context, saga *entities.TransferSaga) error {
	q := getQuerier(ctx, r.pool)

	metadata, err := json.Marshal(saga.Metadata())
	if err != nil {
		return fmt.Errorf("failed to serialize saga metadata: %w", err)
	}

	query := `
		UPDATE transfer_sagas SET state = $2, metadata = $3, updated_at = $4
		WHERE id = $1`

	result, err := q.Exec(ctx, query, saga.ID(), string(saga.State()), metadata, saga.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to update transfer saga: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrSagaNotFound
	}
	return nil
}

// ListStuckDebited returns sagas stranded in DEBITED since before cutoff,
// oldest first.
func (r *SagaRepository) ListStuckDebited(ctx context.Context, cutoff time.Time, limit int) ([]*entities.TransferSaga, error) {
	q := getQuerier(ctx, r.pool)

	query := `SELECT` + sagaColumns + `
		FROM transfer_sagas
		WHERE state = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3`

	rows, err := q.Query(ctx, query, string(entities.SagaStateDebited), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck sagas: %w", err)
	}
	defer rows.Close()

	var out []*entities.TransferSaga
	for rows.Next() {
		saga, err := scanSaga(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, saga)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stuck sagas: %w", err)
	}
	return out, nil
}

// scanSaga hydrates one row into the TransferSaga entity.
func scanSaga(row pgx.Row) (*entities.TransferSaga, error) {
	var (
		id                   uuid.UUID
		fromID, toID         string
		currencyCode         string
		amountStr, stateStr  string
		metadataRaw          []byte
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&id, &fromID, &toID, &currencyCode, &amountStr, &stateStr, &metadataRaw, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSagaNotFound
		}
		return nil, fmt.Errorf("failed to scan transfer saga: %w", err)
	}

	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency in database: %w", err)
	}
	amount, err := valueobjects.NewMoney(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid amount in database: %w", err)
	}
	var metadata map[string]any
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
			return nil, fmt.Errorf("failed to parse saga metadata: %w", err)
		}
	}

	return entities.ReconstructTransferSaga(
		id, fromID, toID, amount, entities.SagaState(stateStr), metadata, createdAt, updatedAt,
	), nil
}
