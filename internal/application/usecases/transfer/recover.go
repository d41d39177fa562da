package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Recover resumes a saga stranded in DEBITED: the debit committed but the
// credit leg (or the completion transition) never did. The credit leg's
// journal guard makes re-running it safe; a leg that already applied is
// detected and only the state transition is replayed.
//
// Sagas in any other state are skipped. Transient errors leave the saga in
// DEBITED for the next recovery tick.
func (e *Engine) Recover(ctx context.Context, sagaID uuid.UUID) error {
	saga, err := e.sagas.FindByID(ctx, sagaID)
	if err != nil {
		return err
	}
	if saga.State() != entities.SagaStateDebited {
		return nil
	}

	creditErr := e.creditLeg(ctx, saga)
	if creditErr == nil || errors.Is(creditErr, errAlreadyCredited) {
		e.invalidate(ctx, saga.ToWalletID())
		if err := e.complete(ctx, saga); err != nil {
			return err
		}
		metrics.SagasRecoveredTotal.Inc()
		metrics.SagasTotal.WithLabelValues(string(entities.SagaStateCompleted)).Inc()
		e.logger.InfoContext(ctx, "saga recovered to completion", "saga_id", sagaID)
		return nil
	}

	if isFinal(creditErr) {
		reason := "Recovery failed: " + creditErr.Error()
		if err := e.compensate(ctx, saga, reason); err != nil {
			return err
		}
		e.invalidate(ctx, saga.FromWalletID())
		e.finalizeFailed(ctx, saga, reason)
		metrics.SagasRecoveredTotal.Inc()
		metrics.SagasTotal.WithLabelValues(string(entities.SagaStateCompensated)).Inc()
		e.logger.WarnContext(ctx, "saga recovered via compensation",
			"saga_id", sagaID, "reason", reason)
		return nil
	}

	return creditErr
}

// RecoverStuck scans for sagas sitting in DEBITED since before cutoff and
// recovers each in turn. One bad saga never stops the sweep.
func (e *Engine) RecoverStuck(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stuck, err := e.sagas.ListStuckDebited(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, saga := range stuck {
		if err := e.Recover(ctx, saga.ID()); err != nil {
			e.logger.ErrorContext(ctx, "saga recovery failed",
				"saga_id", saga.ID(), "error", err)
			continue
		}
		recovered++
	}
	return recovered, nil
}

// isFinal reports whether the credit leg failed for a reason that no amount
// of retrying will fix, so compensation is the right next step.
func isFinal(err error) bool {
	return domainErrors.IsBusinessRule(err) ||
		domainErrors.IsNotFound(err) ||
		domainErrors.IsValidation(err)
}
