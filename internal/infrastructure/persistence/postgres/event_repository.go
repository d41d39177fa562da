package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.EventRepository = (*EventRepository)(nil)

// EventRepository implements the append-only journal. The type offers no
// update or delete on purpose; the store backs that up with a trigger and
// restricted grants for the runtime role.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates an EventRepository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Insert appends a journal row. The wallet_events_saga_leg_idx partial
// unique index rejects a second row for the same (sagaId, event type) pair,
// which is how saga legs stay idempotent under recovery.
func (r *EventRepository) Insert(ctx context.Context, event *entities.WalletEvent) error {
	q := getQuerier(ctx, r.pool)

	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return fmt.Errorf("failed to serialize event metadata: %w", err)
	}

	query := `
		INSERT INTO wallet_events (wallet_id, event_type, currency, amount, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = q.Exec(ctx, query,
		event.WalletID(),
		string(event.EventType()),
		event.Currency().Code(),
		moneyText(event.Amount()),
		metadata,
		event.CreatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "wallet_events_saga_leg_idx") {
			return domainErrors.ErrEventAlreadyRecorded
		}
		if isForeignKeyViolation(err) {
			return domainErrors.ErrWalletNotFound
		}
		return fmt.Errorf("failed to insert wallet event: %w", err)
	}
	return nil
}

// ListByWallet returns journal entries newest first.
func (r *EventRepository) ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]*entities.WalletEvent, error) {
	q := getQuerier(ctx, r.pool)

	query := `
		SELECT id, wallet_id, event_type, currency, amount::text, metadata, created_at
		FROM wallet_events
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := q.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet events: %w", err)
	}
	defer rows.Close()

	var out []*entities.WalletEvent
	for rows.Next() {
		var (
			id           int64
			wID          string
			eventType    string
			currencyCode string
			amountStr    *string
			metadataRaw  []byte
			createdAt    time.Time
		)
		if err := rows.Scan(&id, &wID, &eventType, &currencyCode, &amountStr, &metadataRaw, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet event: %w", err)
		}

		currency, err := valueobjects.NewCurrency(currencyCode)
		if err != nil {
			return nil, fmt.Errorf("invalid currency in database: %w", err)
		}
		var amount *valueobjects.Money
		if amountStr != nil {
			m, err := valueobjects.NewMoney(*amountStr, currency)
			if err != nil {
				return nil, fmt.Errorf("invalid amount in database: %w", err)
			}
			amount = &m
		}
		var metadata map[string]any
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
				return nil, fmt.Errorf("failed to parse event metadata: %w", err)
			}
		}

		out = append(out, entities.ReconstructWalletEvent(
			id, wID, events.EventType(eventType), currency, amount, metadata, createdAt,
		))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet events: %w", err)
	}
	return out, nil
}
