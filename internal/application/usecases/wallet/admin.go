package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Freeze transitions a wallet to FROZEN. Freezing an already frozen wallet
// succeeds without emitting an event.
func (e *Engine) Freeze(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error) {
	return e.transition(ctx, "freeze", walletID, requestID, events.WalletFrozen,
		func(w *entities.Wallet) (bool, error) { return w.Freeze() })
}

// Unfreeze transitions a wallet back to ACTIVE. Unfreezing an active wallet
// succeeds without emitting an event.
func (e *Engine) Unfreeze(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error) {
	return e.transition(ctx, "unfreeze", walletID, requestID, events.WalletUnfrozen,
		func(w *entities.Wallet) (bool, error) { return w.Unfreeze() })
}

// Close permanently closes a wallet. The balance must be zero; CLOSED is
// terminal.
func (e *Engine) Close(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error) {
	return e.transition(ctx, "close", walletID, requestID, events.WalletClosed,
		func(w *entities.Wallet) (bool, error) { return w.Close() })
}

// transition is the shared status-change path: lock the row, apply the
// mutation, journal and publish only when the status actually changed.
func (e *Engine) transition(
	ctx context.Context,
	operation, walletID, requestID string,
	eventType events.EventType,
	apply func(w *entities.Wallet) (bool, error),
) (*dtos.WalletStateResult, error) {
	if walletID == "" {
		return nil, domainErrors.ValidationError{Field: "walletId", Message: "wallet id is required"}
	}

	var result dtos.WalletStateResult
	hit, err := e.replay(ctx, requestID, &result)
	if err != nil {
		return nil, err
	}
	if hit {
		metrics.IdempotentReplaysTotal.WithLabelValues(operation).Inc()
		return &result, nil
	}

	err = e.execute(ctx, requestID, func(txCtx context.Context, buf *ports.EventBuffer) error {
		w, err := e.wallets.FindByIDForUpdate(txCtx, walletID)
		if err != nil {
			return fmt.Errorf("load wallet %s: %w", walletID, err)
		}

		changed, err := apply(w)
		if err != nil {
			return err
		}
		if changed {
			if err := e.wallets.Update(txCtx, w); err != nil {
				return err
			}
			meta := requestMetadata(requestID)
			if err := e.journal.Insert(txCtx, entities.NewWalletEvent(
				w.ID(), eventType, w.Currency(), nil, meta,
			)); err != nil {
				return err
			}
			if err := buf.Publish(w.ID(), events.NewBusMessage(eventType, w.ID(), nil, meta)); err != nil {
				return err
			}
		}

		result = dtos.WalletStateResult{
			WalletID: w.ID(),
			Status:   string(w.Status()),
			Balance:  w.Balance().Amount(),
		}
		return e.record(txCtx, requestID, result)
	})
	if errors.Is(err, domainErrors.ErrDuplicateRequest) {
		if rerr := e.resolveDuplicate(ctx, requestID, &result); rerr != nil {
			return nil, rerr
		}
		metrics.IdempotentReplaysTotal.WithLabelValues(operation).Inc()
		return &result, nil
	}
	if err != nil {
		metrics.OperationsTotal.WithLabelValues(operation, "error").Inc()
		return nil, err
	}

	e.invalidateBalanceCache(ctx, walletID)
	metrics.OperationsTotal.WithLabelValues(operation, "success").Inc()
	e.logger.InfoContext(ctx, "wallet status changed",
		"wallet_id", result.WalletID, "operation", operation, "status", result.Status)
	return &result, nil
}

// SetDailyLimit sets the daily withdrawal limit, or clears it when the
// command carries no limit.
func (e *Engine) SetDailyLimit(ctx context.Context, cmd dtos.SetDailyLimitCommand) (*dtos.WalletStateResult, error) {
	if cmd.WalletID == "" {
		return nil, domainErrors.ValidationError{Field: "walletId", Message: "wallet id is required"}
	}
	if cmd.Limit != nil && !cmd.Limit.IsPositive() {
		return nil, domainErrors.ErrInvalidAmount
	}

	var result dtos.WalletStateResult
	hit, err := e.replay(ctx, cmd.RequestID, &result)
	if err != nil {
		return nil, err
	}
	if hit {
		metrics.IdempotentReplaysTotal.WithLabelValues("set_daily_limit").Inc()
		return &result, nil
	}

	err = e.execute(ctx, cmd.RequestID, func(txCtx context.Context, buf *ports.EventBuffer) error {
		w, err := e.wallets.FindByIDForUpdate(txCtx, cmd.WalletID)
		if err != nil {
			return fmt.Errorf("load wallet %s: %w", cmd.WalletID, err)
		}

		meta := requestMetadata(cmd.RequestID)
		eventType := events.DailyLimitRemoved
		var amount *valueobjects.Money

		if cmd.Limit != nil {
			limit, err := valueobjects.NewMoneyFromDecimal(*cmd.Limit, w.Currency())
			if err != nil {
				return err
			}
			if err := w.SetDailyWithdrawalLimit(limit); err != nil {
				return err
			}
			eventType = events.DailyLimitSet
			amount = &limit
		} else {
			if err := w.ClearDailyWithdrawalLimit(); err != nil {
				return err
			}
		}

		if err := e.wallets.Update(txCtx, w); err != nil {
			return err
		}
		if err := e.journal.Insert(txCtx, entities.NewWalletEvent(
			w.ID(), eventType, w.Currency(), amount, meta,
		)); err != nil {
			return err
		}
		msg := events.NewBusMessage(eventType, w.ID(), moneyAmount(amount), meta)
		if err := buf.Publish(w.ID(), msg); err != nil {
			return err
		}

		result = dtos.WalletStateResult{
			WalletID: w.ID(),
			Status:   string(w.Status()),
			Balance:  w.Balance().Amount(),
		}
		return e.record(txCtx, cmd.RequestID, result)
	})
	if errors.Is(err, domainErrors.ErrDuplicateRequest) {
		if rerr := e.resolveDuplicate(ctx, cmd.RequestID, &result); rerr != nil {
			return nil, rerr
		}
		metrics.IdempotentReplaysTotal.WithLabelValues("set_daily_limit").Inc()
		return &result, nil
	}
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("set_daily_limit", "error").Inc()
		return nil, err
	}

	e.invalidateBalanceCache(ctx, cmd.WalletID)
	metrics.OperationsTotal.WithLabelValues("set_daily_limit", "success").Inc()
	return &result, nil
}

// moneyAmount unwraps an optional Money into the decimal pointer the bus
// message format expects.
func moneyAmount(m *valueobjects.Money) *decimal.Decimal {
	if m == nil {
		return nil
	}
	amt := m.Amount()
	return &amt
}
