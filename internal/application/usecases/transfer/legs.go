package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
)

// debitLeg locks the source wallet, debits it with full withdraw semantics
// (balance and daily limit checks), and moves the saga PENDING -> DEBITED.
// All in one transaction: either the money leaves the source and the saga
// records it, or neither happens.
func (e *Engine) debitLeg(ctx context.Context, saga *entities.TransferSaga) error {
	return e.run(ctx, func(txCtx context.Context, buf *ports.EventBuffer) error {
		src, err := e.wallets.FindByIDForUpdate(txCtx, saga.FromWalletID())
		if err != nil {
			return fmt.Errorf("load source wallet: %w", err)
		}
		current, err := e.sagas.FindByIDForUpdate(txCtx, saga.ID())
		if err != nil {
			return err
		}
		if current.State() != entities.SagaStatePending {
			// Another actor already advanced this saga.
			*saga = *current
			return nil
		}

		if err := src.Withdraw(saga.Amount(), time.Now()); err != nil {
			return err
		}
		if err := e.wallets.Update(txCtx, src); err != nil {
			return err
		}

		if err := current.TransitionTo(entities.SagaStateDebited, ""); err != nil {
			return err
		}
		if err := e.sagas.Update(txCtx, current); err != nil {
			return err
		}

		amount := saga.Amount()
		meta := map[string]any{"sagaId": saga.ID().String(), "transferTo": saga.ToWalletID()}
		if err := e.journal.Insert(txCtx, entities.NewWalletEvent(
			src.ID(), events.FundsWithdrawn, src.Currency(), &amount, meta,
		)); err != nil {
			return err
		}
		if err := buf.Publish(src.ID(), events.NewBusMessage(
			events.FundsWithdrawn, src.ID(), decimalPtr(amount.Amount()), meta,
		)); err != nil {
			return err
		}

		*saga = *current
		return nil
	})
}

// creditLeg locks the destination wallet and credits it. The journal row is
// inserted before the balance change: its uniqueness on (sagaId, event type)
// is the guard that makes the leg idempotent, so a leg that already ran
// rolls back cleanly and reports errAlreadyCredited.
func (e *Engine) creditLeg(ctx context.Context, saga *entities.TransferSaga) error {
	err := e.run(ctx, func(txCtx context.Context, buf *ports.EventBuffer) error {
		dst, err := e.wallets.FindByIDForUpdate(txCtx, saga.ToWalletID())
		if err != nil {
			return fmt.Errorf("load destination wallet: %w", err)
		}

		amount := saga.Amount()
		meta := map[string]any{"sagaId": saga.ID().String(), "transferFrom": saga.FromWalletID()}
		if err := e.journal.Insert(txCtx, entities.NewWalletEvent(
			dst.ID(), events.FundsDeposited, dst.Currency(), &amount, meta,
		)); err != nil {
			return err
		}

		if err := dst.Credit(amount); err != nil {
			return err
		}
		if err := e.wallets.Update(txCtx, dst); err != nil {
			return err
		}
		return buf.Publish(dst.ID(), events.NewBusMessage(
			events.FundsDeposited, dst.ID(), decimalPtr(amount.Amount()), meta,
		))
	})
	if errors.Is(err, domainErrors.ErrEventAlreadyRecorded) {
		return errAlreadyCredited
	}
	return err
}

// complete moves the saga DEBITED -> COMPLETED in its own transaction and
// journals TRANSFER_COMPLETED on the source wallet.
func (e *Engine) complete(ctx context.Context, saga *entities.TransferSaga) error {
	return e.run(ctx, func(txCtx context.Context, buf *ports.EventBuffer) error {
		current, err := e.sagas.FindByIDForUpdate(txCtx, saga.ID())
		if err != nil {
			return err
		}
		if current.State() == entities.SagaStateCompleted {
			*saga = *current
			return nil
		}
		if err := current.TransitionTo(entities.SagaStateCompleted, ""); err != nil {
			return err
		}
		if err := e.sagas.Update(txCtx, current); err != nil {
			return err
		}

		amount := saga.Amount()
		meta := map[string]any{"sagaId": saga.ID().String(), "transferTo": saga.ToWalletID()}
		if err := e.journal.Insert(txCtx, entities.NewWalletEvent(
			saga.FromWalletID(), events.TransferCompleted, amount.Currency(), &amount, meta,
		)); err != nil && !errors.Is(err, domainErrors.ErrEventAlreadyRecorded) {
			return err
		}
		if err := buf.Publish(saga.FromWalletID(), events.NewBusMessage(
			events.TransferCompleted, saga.FromWalletID(), decimalPtr(amount.Amount()), meta,
		)); err != nil {
			return err
		}

		*saga = *current
		return nil
	})
}

// compensate refunds the source wallet and moves the saga
// DEBITED -> COMPENSATED. A FROZEN source still receives the refund; a
// CLOSED source forfeits it and the saga records why. A failure here leaves
// the saga DEBITED for recovery to retry.
func (e *Engine) compensate(ctx context.Context, saga *entities.TransferSaga, reason string) error {
	return e.run(ctx, func(txCtx context.Context, buf *ports.EventBuffer) error {
		current, err := e.sagas.FindByIDForUpdate(txCtx, saga.ID())
		if err != nil {
			return err
		}
		if current.State() != entities.SagaStateDebited {
			*saga = *current
			return nil
		}

		src, err := e.wallets.FindByIDForUpdate(txCtx, saga.FromWalletID())
		if err != nil {
			return fmt.Errorf("load source wallet: %w", err)
		}

		amount := saga.Amount()
		refunded := true
		switch err := src.CreditCompensation(amount); {
		case err == nil:
		case errors.Is(err, domainErrors.ErrWalletClosed):
			// No account to refund into; the saga terminates without one.
			refunded = false
			reason = reason + "; refund skipped: source wallet closed"
		default:
			return err
		}

		if refunded {
			if err := e.wallets.Update(txCtx, src); err != nil {
				return err
			}
			meta := map[string]any{"sagaId": saga.ID().String(), "reason": reason}
			if err := e.journal.Insert(txCtx, entities.NewWalletEvent(
				src.ID(), events.TransferCompensated, src.Currency(), &amount, meta,
			)); err != nil && !errors.Is(err, domainErrors.ErrEventAlreadyRecorded) {
				return err
			}
			if err := buf.Publish(src.ID(), events.NewBusMessage(
				events.TransferCompensated, src.ID(), decimalPtr(amount.Amount()), meta,
			)); err != nil {
				return err
			}
		}

		if err := current.TransitionTo(entities.SagaStateCompensated, reason); err != nil {
			return err
		}
		if err := e.sagas.Update(txCtx, current); err != nil {
			return err
		}

		*saga = *current
		return nil
	})
}

// markFailed takes the saga to FAILED along whichever legal edge applies
// (PENDING -> FAILED or COMPENSATED -> FAILED) and emits the
// TRANSFER_FAILED bus message with the reason. Best-effort: the caller's
// original error is what the client sees either way.
func (e *Engine) markFailed(ctx context.Context, saga *entities.TransferSaga, reason string) {
	err := e.run(ctx, func(txCtx context.Context, buf *ports.EventBuffer) error {
		current, err := e.sagas.FindByIDForUpdate(txCtx, saga.ID())
		if err != nil {
			return err
		}
		if current.State() == entities.SagaStateFailed {
			*saga = *current
			return nil
		}
		if !current.State().CanTransitionTo(entities.SagaStateFailed) {
			// DEBITED sagas belong to recovery, not to this path.
			*saga = *current
			return nil
		}
		if err := current.TransitionTo(entities.SagaStateFailed, reason); err != nil {
			return err
		}
		if err := e.sagas.Update(txCtx, current); err != nil {
			return err
		}

		amount := saga.Amount()
		meta := map[string]any{"sagaId": saga.ID().String(), "reason": reason}
		if err := buf.Publish(saga.FromWalletID(), events.NewBusMessage(
			events.TransferFailed, saga.FromWalletID(), decimalPtr(amount.Amount()), meta,
		)); err != nil {
			return err
		}

		*saga = *current
		return nil
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to mark saga FAILED",
			"saga_id", saga.ID(), "error", err)
	}
}

// failPending finalizes a saga whose debit leg failed.
func (e *Engine) failPending(ctx context.Context, saga *entities.TransferSaga, cause error) {
	e.markFailed(ctx, saga, cause.Error())
}

// finalizeFailed finalizes a compensated saga.
func (e *Engine) finalizeFailed(ctx context.Context, saga *entities.TransferSaga, reason string) {
	e.markFailed(ctx, saga, reason)
}
