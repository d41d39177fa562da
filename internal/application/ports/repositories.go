// Package ports declares the interfaces the application layer depends on.
// Infrastructure packages implement them; use cases never import
// infrastructure directly.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/domain/entities"
)

// WalletRepository persists the wallet aggregate.
//
// All implementations honor the transaction carried in ctx by the
// Coordinator; outside a transaction they operate on the pool directly.
type WalletRepository interface {
	// FindByID loads a wallet, or errors.ErrWalletNotFound.
	FindByID(ctx context.Context, id string) (*entities.Wallet, error)

	// FindByIDForUpdate loads a wallet under an exclusive row lock. Must be
	// called inside a transaction; the lock is released on commit/rollback.
	FindByIDForUpdate(ctx context.Context, id string) (*entities.Wallet, error)

	// Insert creates a wallet row. A concurrent auto-provision of the same
	// id surfaces as a retryable ConcurrencyError.
	Insert(ctx context.Context, wallet *entities.Wallet) error

	// Update persists a mutated wallet with an optimistic version check.
	Update(ctx context.Context, wallet *entities.Wallet) error
}

// EventRepository is the append-only journal. Deliberately insert+select
// only: the journal invariant is enforced at the API level here, and again
// by a store trigger and the runtime role's grants.
type EventRepository interface {
	// Insert appends a journal row. A second row with the same sagaId
	// metadata and event type violates the saga-leg uniqueness constraint
	// and surfaces as errors.ErrEventAlreadyRecorded.
	Insert(ctx context.Context, event *entities.WalletEvent) error

	// ListByWallet returns events for a wallet ordered by created_at
	// descending.
	ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]*entities.WalletEvent, error)
}

// SagaRepository persists transfer sagas.
type SagaRepository interface {
	Insert(ctx context.Context, saga *entities.TransferSaga) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.TransferSaga, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.TransferSaga, error)
	Update(ctx context.Context, saga *entities.TransferSaga) error

	// ListStuckDebited returns sagas sitting in DEBITED whose updated_at is
	// older than cutoff, oldest first, for recovery.
	ListStuckDebited(ctx context.Context, cutoff time.Time, limit int) ([]*entities.TransferSaga, error)
}

// IdempotencyRepository stores request-id -> response mappings.
type IdempotencyRepository interface {
	// Find returns the record for requestID, or (nil, nil) when absent.
	Find(ctx context.Context, requestID string) (*entities.IdempotencyRecord, error)

	// Insert stores a record. A concurrent winner surfaces as
	// errors.ErrDuplicateRequest.
	Insert(ctx context.Context, record *entities.IdempotencyRecord) error

	// DeleteOlderThan garbage-collects expired records.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxRepository stages and drains bus messages.
type OutboxRepository interface {
	Insert(ctx context.Context, row *entities.OutboxRow) error

	// FindUnpublished returns up to limit unpublished rows, oldest first.
	FindUnpublished(ctx context.Context, limit int) ([]*entities.OutboxRow, error)

	// MarkPublished flips published=true for the given ids in one update.
	MarkPublished(ctx context.Context, ids []uuid.UUID) error

	// DeletePublishedBefore removes long-published rows.
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// FraudAlertRepository is append-only like the journal.
type FraudAlertRepository interface {
	Insert(ctx context.Context, alert *entities.FraudAlert) error
	ListByWallet(ctx context.Context, walletID string, limit int) ([]*entities.FraudAlert, error)
}
