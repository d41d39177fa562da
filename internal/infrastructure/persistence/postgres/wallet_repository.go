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
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.WalletRepository = (*WalletRepository)(nil)

// WalletRepository implements ports.WalletRepository.
//
// Amounts are stored as NUMERIC(20,2) and scanned through their text form;
// optimistic locking rides the version column.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a WalletRepository.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

const walletColumns = `
	id, currency, status, balance::text,
	daily_withdrawal_limit::text, daily_withdrawal_total::text,
	last_withdrawal_date, version, created_at, updated_at`

// FindByID loads a wallet without locking.
func (r *WalletRepository) FindByID(ctx context.Context, id string) (*entities.Wallet, error) {
	q := getQuerier(ctx, r.pool)
	query := `SELECT` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(q.QueryRow(ctx, query, id))
}

// FindByIDForUpdate loads a wallet under FOR UPDATE. The caller must be
// inside a coordinated transaction; the row lock serializes every mutation
// of this wallet until commit.
func (r *WalletRepository) FindByIDForUpdate(ctx context.Context, id string) (*entities.Wallet, error) {
	if !hasTx(ctx) {
		return nil, fmt.Errorf("FindByIDForUpdate requires a transaction")
	}
	q := getQuerier(ctx, r.pool)
	query := `SELECT` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return scanWallet(q.QueryRow(ctx, query, id))
}

// Insert creates a wallet row. A concurrent provision of the same id is a
// retryable conflict: the retry re-reads and finds the winner's row.
func (r *WalletRepository) Insert(ctx context.Context, wallet *entities.Wallet) error {
	q := getQuerier(ctx, r.pool)
	query := `
		INSERT INTO wallets (
			id, currency, status, balance,
			daily_withdrawal_limit, daily_withdrawal_total,
			last_withdrawal_date, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := q.Exec(ctx, query,
		wallet.ID(),
		wallet.Currency().Code(),
		string(wallet.Status()),
		wallet.Balance().StringFixed(),
		moneyText(wallet.DailyWithdrawalLimit()),
		wallet.DailyWithdrawalTotal().StringFixed(),
		wallet.LastWithdrawalDate(),
		wallet.Version(),
		wallet.CreatedAt(),
		wallet.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "wallets_pkey") {
			return domainErrors.NewConcurrencyError(
				"Wallet", wallet.ID(), "wallet was provisioned by a concurrent request")
		}
		return fmt.Errorf("failed to insert wallet: %w", err)
	}
	return nil
}

// Update persists a mutated wallet. The WHERE clause pins the version the
// mutation was computed from; zero rows affected means somebody else got
// there first.
func (r *WalletRepository) Update(ctx context.Context, wallet *entities.Wallet) error {
	q := getQuerier(ctx, r.pool)
	query := `
		UPDATE wallets SET
			status = $2,
			balance = $3,
			daily_withdrawal_limit = $4,
			daily_withdrawal_total = $5,
			last_withdrawal_date = $6,
			version = $7,
			updated_at = $8
		WHERE id = $1 AND version = $9`

	// The entity already bumped its version; the row must still hold the
	// previous one.
	expectedVersion := wallet.Version() - 1

	result, err := q.Exec(ctx, query,
		wallet.ID(),
		string(wallet.Status()),
		wallet.Balance().StringFixed(),
		moneyText(wallet.DailyWithdrawalLimit()),
		wallet.DailyWithdrawalTotal().StringFixed(),
		wallet.LastWithdrawalDate(),
		wallet.Version(),
		wallet.UpdatedAt(),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.NewConcurrencyError(
			"Wallet", wallet.ID(),
			fmt.Sprintf("wallet was modified by another transaction (expected version %d)", expectedVersion),
		)
	}
	return nil
}

// moneyText renders an optional Money for a nullable NUMERIC column.
func moneyText(m *valueobjects.Money) *string {
	if m == nil {
		return nil
	}
	s := m.StringFixed()
	return &s
}

// scanWallet hydrates one row into the Wallet entity.
func scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var (
		id, currencyCode, statusStr string
		balanceStr, totalStr        string
		limitStr                    *string
		lastWithdrawalDate          *time.Time
		version                     int64
		createdAt, updatedAt        time.Time
	)

	err := row.Scan(
		&id, &currencyCode, &statusStr,
		&balanceStr, &limitStr, &totalStr,
		&lastWithdrawalDate, &version, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency in database: %w", err)
	}
	balance, err := valueobjects.NewMoney(balanceStr, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid balance in database: %w", err)
	}
	total, err := valueobjects.NewMoney(totalStr, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid withdrawal total in database: %w", err)
	}
	var limit *valueobjects.Money
	if limitStr != nil {
		l, err := valueobjects.NewMoney(*limitStr, currency)
		if err != nil {
			return nil, fmt.Errorf("invalid withdrawal limit in database: %w", err)
		}
		limit = &l
	}

	return entities.ReconstructWallet(
		id, currency, entities.WalletStatus(statusStr),
		balance, limit, total, lastWithdrawalDate,
		version, createdAt, updatedAt,
	), nil
}
