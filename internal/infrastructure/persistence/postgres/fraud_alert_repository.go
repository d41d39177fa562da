package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
)

// Compile-time check
var _ ports.FraudAlertRepository = (*FraudAlertRepository)(nil)

// FraudAlertRepository implements ports.FraudAlertRepository. Append-only
// like the journal.
type FraudAlertRepository struct {
	pool *pgxpool.Pool
}

// NewFraudAlertRepository creates a FraudAlertRepository.
func NewFraudAlertRepository(pool *pgxpool.Pool) *FraudAlertRepository {
	return &FraudAlertRepository{pool: pool}
}

// Insert writes an alert.
func (r *FraudAlertRepository) Insert(ctx context.Context, alert *entities.FraudAlert) error {
	q := getQuerier(ctx, r.pool)

	details, err := json.Marshal(alert.Details())
	if err != nil {
		return fmt.Errorf("failed to serialize alert details: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO fraud_alerts (wallet_id, alert_type, details, created_at)
		VALUES ($1, $2, $3, $4)`,
		alert.WalletID(), string(alert.AlertType()), details, alert.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fraud alert: %w", err)
	}
	return nil
}

// ListByWallet returns alerts for a wallet, newest first.
func (r *FraudAlertRepository) ListByWallet(ctx context.Context, walletID string, limit int) ([]*entities.FraudAlert, error) {
	q := getQuerier(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT id, wallet_id, alert_type, details, created_at
		FROM fraud_alerts
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud alerts: %w", err)
	}
	defer rows.Close()

	var out []*entities.FraudAlert
	for rows.Next() {
		var (
			id         int64
			wID        string
			alertType  string
			detailsRaw []byte
			createdAt  time.Time
		)
		if err := rows.Scan(&id, &wID, &alertType, &detailsRaw, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan fraud alert: %w", err)
		}
		var details map[string]any
		if len(detailsRaw) > 0 {
			if err := json.Unmarshal(detailsRaw, &details); err != nil {
				return nil, fmt.Errorf("failed to parse alert details: %w", err)
			}
		}
		out = append(out, entities.ReconstructFraudAlert(id, wID, entities.AlertType(alertType), details, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fraud alerts: %w", err)
	}
	return out, nil
}
