package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Deposit credits a wallet. An unknown wallet id is auto-provisioned in the
// same transaction with the default currency, so the first deposit both
// creates the account and funds it.
func (e *Engine) Deposit(ctx context.Context, cmd dtos.DepositCommand) (*dtos.BalanceResult, error) {
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
		metrics.IdempotentReplaysTotal.WithLabelValues("deposit").Inc()
		return &result, nil
	}

	err = e.execute(ctx, cmd.RequestID, func(txCtx context.Context, buf *ports.EventBuffer) error {
		w, err := e.wallets.FindByIDForUpdate(txCtx, cmd.WalletID)
		switch {
		case err == nil:
		case domainErrors.IsNotFound(err):
			w, err = e.provision(txCtx, cmd.WalletID, buf)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("load wallet %s: %w", cmd.WalletID, err)
		}

		amount, err := valueobjects.NewMoneyFromDecimal(cmd.Amount, w.Currency())
		if err != nil {
			return err
		}
		if err := w.Credit(amount); err != nil {
			return err
		}
		if err := e.wallets.Update(txCtx, w); err != nil {
			return err
		}

		meta := requestMetadata(cmd.RequestID)
		if err := e.journal.Insert(txCtx, entities.NewWalletEvent(
			w.ID(), events.FundsDeposited, w.Currency(), &amount, meta,
		)); err != nil {
			return err
		}
		amt := amount.Amount()
		if err := buf.Publish(w.ID(), events.NewBusMessage(events.FundsDeposited, w.ID(), &amt, meta)); err != nil {
			return err
		}

		result = dtos.BalanceResult{WalletID: w.ID(), Balance: w.Balance().Amount()}
		return e.record(txCtx, cmd.RequestID, result)
	})
	if errors.Is(err, domainErrors.ErrDuplicateRequest) {
		if rerr := e.resolveDuplicate(ctx, cmd.RequestID, &result); rerr != nil {
			return nil, rerr
		}
		metrics.IdempotentReplaysTotal.WithLabelValues("deposit").Inc()
		return &result, nil
	}
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("deposit", "error").Inc()
		return nil, err
	}

	e.writeBalanceCache(ctx, result.WalletID, result.Balance)
	metrics.OperationsTotal.WithLabelValues("deposit", "success").Inc()
	e.logger.InfoContext(ctx, "deposit applied",
		"wallet_id", result.WalletID, "amount", cmd.Amount.String())
	return &result, nil
}

// provision creates the wallet row, journals WALLET_CREATED and stages the
// bus message, all inside the caller's transaction.
func (e *Engine) provision(txCtx context.Context, walletID string, buf *ports.EventBuffer) (*entities.Wallet, error) {
	w, err := entities.NewWallet(walletID, e.cfg.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	if err := e.wallets.Insert(txCtx, w); err != nil {
		return nil, err
	}
	if err := e.journal.Insert(txCtx, entities.NewWalletEvent(
		w.ID(), events.WalletCreated, w.Currency(), nil, nil,
	)); err != nil {
		return nil, err
	}
	if err := buf.Publish(w.ID(), events.NewBusMessage(events.WalletCreated, w.ID(), nil, nil)); err != nil {
		return nil, err
	}
	return w, nil
}

// requestMetadata tags journal entries and bus messages with the originating
// request id when one was supplied.
func requestMetadata(requestID string) map[string]any {
	if requestID == "" {
		return nil
	}
	return map[string]any{"requestId": requestID}
}
