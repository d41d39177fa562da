package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Withdraw debits a wallet. Unlike deposit, an unknown wallet is an error;
// withdrawals never provision.
func (e *Engine) Withdraw(ctx context.Context, cmd dtos.WithdrawCommand) (*dtos.BalanceResult, error) {
	if cmd.WalletID == "" {
		return nil, domainErrors.ValidationError{Field: "walletId", Message: "wallet id is required"}
	}
	if !cmd.Amount.IsPositive() {
		return nil, domainErrors.ErrInvalidAmount
	}

	var result dtos.BalanceResult
	hit, err := e.replay(ctx, cmd.RequestID, &result)
	if err != nil {
		return nil, err
	}
	if hit {
		metrics.IdempotentReplaysTotal.WithLabelValues("withdraw").Inc()
		return &result, nil
	}

	err = e.execute(ctx, cmd.RequestID, func(txCtx context.Context, buf *ports.EventBuffer) error {
		w, err := e.wallets.FindByIDForUpdate(txCtx, cmd.WalletID)
		if err != nil {
			return fmt.Errorf("load wallet %s: %w", cmd.WalletID, err)
		}

		amount, err := valueobjects.NewMoneyFromDecimal(cmd.Amount, w.Currency())
		if err != nil {
			return err
		}
		if err := w.Withdraw(amount, time.Now()); err != nil {
			return err
		}
		if err := e.wallets.Update(txCtx, w); err != nil {
			return err
		}

		meta := requestMetadata(cmd.RequestID)
		if err := e.journal.Insert(txCtx, entities.NewWalletEvent(
			w.ID(), events.FundsWithdrawn, w.Currency(), &amount, meta,
		)); err != nil {
			return err
		}
		amt := amount.Amount()
		if err := buf.Publish(w.ID(), events.NewBusMessage(events.FundsWithdrawn, w.ID(), &amt, meta)); err != nil {
			return err
		}

		result = dtos.BalanceResult{WalletID: w.ID(), Balance: w.Balance().Amount()}
		return e.record(txCtx, cmd.RequestID, result)
	})
	if errors.Is(err, domainErrors.ErrDuplicateRequest) {
		if rerr := e.resolveDuplicate(ctx, cmd.RequestID, &result); rerr != nil {
			return nil, rerr
		}
		metrics.IdempotentReplaysTotal.WithLabelValues("withdraw").Inc()
		return &result, nil
	}
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("withdraw", "error").Inc()
		return nil, err
	}

	e.writeBalanceCache(ctx, result.WalletID, result.Balance)
	metrics.OperationsTotal.WithLabelValues("withdraw", "success").Inc()
	e.logger.InfoContext(ctx, "withdrawal applied",
		"wallet_id", result.WalletID, "amount", cmd.Amount.String())
	return &result, nil
}
