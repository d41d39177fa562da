package wallet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
)

// GetBalance returns the current balance, read-through the cache. An unknown
// wallet reports a zero balance without provisioning anything; the account
// comes into existence only on its first deposit.
func (e *Engine) GetBalance(ctx context.Context, walletID string) (*dtos.BalanceResult, error) {
	if walletID == "" {
		return nil, domainErrors.ValidationError{Field: "walletId", Message: "wallet id is required"}
	}

	if balance, ok, err := e.cache.Get(ctx, walletID); err != nil {
		// Cache trouble degrades to the store, never to an error.
		e.logger.WarnContext(ctx, "balance cache read failed",
			"wallet_id", walletID, "error", err)
	} else if ok {
		return &dtos.BalanceResult{WalletID: walletID, Balance: balance}, nil
	}

	w, err := e.wallets.FindByID(ctx, walletID)
	if domainErrors.IsNotFound(err) {
		return &dtos.BalanceResult{WalletID: walletID, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load wallet %s: %w", walletID, err)
	}

	balance := w.Balance().Amount()
	e.writeBalanceCache(ctx, walletID, balance)
	return &dtos.BalanceResult{WalletID: walletID, Balance: balance}, nil
}

// GetWallet returns the full wallet state. Unlike GetBalance this errors on
// an unknown id; admin callers need to distinguish absent from empty.
func (e *Engine) GetWallet(ctx context.Context, walletID string) (*dtos.WalletStateResult, error) {
	if walletID == "" {
		return nil, domainErrors.ValidationError{Field: "walletId", Message: "wallet id is required"}
	}
	w, err := e.wallets.FindByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return &dtos.WalletStateResult{
		WalletID: w.ID(),
		Status:   string(w.Status()),
		Balance:  w.Balance().Amount(),
	}, nil
}

// GetHistory lists journal entries for a wallet, newest first. The page size
// is clamped to the configured maximum.
func (e *Engine) GetHistory(ctx context.Context, walletID string, limit, offset int) (*dtos.HistoryResult, error) {
	if walletID == "" {
		return nil, domainErrors.ValidationError{Field: "walletId", Message: "wallet id is required"}
	}
	if limit <= 0 || limit > e.cfg.HistoryPageLimit {
		limit = e.cfg.HistoryPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := e.journal.ListByWallet(ctx, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events for wallet %s: %w", walletID, err)
	}

	out := make([]dtos.EventDTO, 0, len(rows))
	for _, ev := range rows {
		dto := dtos.EventDTO{
			ID:        ev.ID(),
			WalletID:  ev.WalletID(),
			EventType: string(ev.EventType()),
			Currency:  ev.Currency().Code(),
			Metadata:  ev.Metadata(),
			CreatedAt: ev.CreatedAt(),
		}
		if amount := ev.Amount(); amount != nil {
			amt := amount.Amount()
			dto.Amount = &amt
		}
		out = append(out, dto)
	}

	return &dtos.HistoryResult{
		WalletID: walletID,
		Events:   out,
		Limit:    limit,
		Offset:   offset,
	}, nil
}
