// Package transfer implements the two-leg transfer saga: debit the source,
// credit the destination, compensate on failure. Each leg runs in its own
// store transaction; the persisted saga row lets recovery resume anything a
// crash interrupted.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
	"github.com/Haleralex/walletcore/internal/pkg/retry"
)

// errAlreadyCredited marks a credit leg whose journal row already exists:
// the leg ran before, the transaction rolled back, and the saga may advance.
var errAlreadyCredited = errors.New("credit leg already applied")

// EngineConfig carries the saga engine tunables.
type EngineConfig struct {
	RequestLockTTL time.Duration
	RetryPolicy    retry.Policy
}

// Engine orchestrates transfer sagas.
type Engine struct {
	coordinator ports.Coordinator
	wallets     ports.WalletRepository
	sagas       ports.SagaRepository
	journal     ports.EventRepository
	idempotency ports.IdempotencyRepository
	cache       ports.BalanceCache
	locker      ports.RequestLocker
	cfg         EngineConfig
	logger      *slog.Logger
}

// NewEngine wires a transfer saga engine.
func NewEngine(
	coordinator ports.Coordinator,
	wallets ports.WalletRepository,
	sagas ports.SagaRepository,
	journal ports.EventRepository,
	idempotency ports.IdempotencyRepository,
	cache ports.BalanceCache,
	locker ports.RequestLocker,
	cfg EngineConfig,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestLockTTL <= 0 {
		cfg.RequestLockTTL = 60 * time.Second
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = retry.DefaultPolicy()
	}
	return &Engine{
		coordinator: coordinator,
		wallets:     wallets,
		sagas:       sagas,
		journal:     journal,
		idempotency: idempotency,
		cache:       cache,
		locker:      locker,
		cfg:         cfg,
		logger:      logger,
	}
}

// Execute runs a transfer end to end. On success the saga is COMPLETED and
// the result carries the final state; on failure the error is returned and
// the saga is FAILED or COMPENSATED in the store (or DEBITED, awaiting
// recovery, if compensation itself could not run).
//
// The idempotency record is written during initiation and stores the saga
// id, so a replayed request reports the live state of the original saga
// instead of starting a second one.
func (e *Engine) Execute(ctx context.Context, cmd dtos.TransferCommand) (*dtos.TransferResult, error) {
	if cmd.FromWalletID == "" || cmd.ToWalletID == "" {
		return nil, domainErrors.ValidationError{Field: "walletId", Message: "wallet ids are required"}
	}
	if cmd.FromWalletID == cmd.ToWalletID {
		return nil, domainErrors.ErrTransferToSelf
	}
	if !cmd.Amount.IsPositive() {
		return nil, domainErrors.ErrInvalidAmount
	}

	if replayed, err := e.replay(ctx, cmd.RequestID); err != nil {
		return nil, err
	} else if replayed != nil {
		metrics.IdempotentReplaysTotal.WithLabelValues("transfer").Inc()
		return replayed, nil
	}

	if cmd.RequestID != "" && e.locker != nil {
		key := "lock:req:" + cmd.RequestID
		acquired, err := e.locker.Acquire(ctx, key, e.cfg.RequestLockTTL)
		if err != nil {
			e.logger.WarnContext(ctx, "request lock unavailable", "error", err)
		} else if !acquired {
			return nil, domainErrors.ErrConcurrentRequest
		} else {
			defer func() {
				if rerr := e.locker.Release(context.WithoutCancel(ctx), key); rerr != nil {
					e.logger.WarnContext(ctx, "request lock release failed", "error", rerr)
				}
			}()
		}
	}

	saga, err := e.initiate(ctx, cmd)
	if errors.Is(err, domainErrors.ErrDuplicateRequest) {
		replayed, rerr := e.replay(ctx, cmd.RequestID)
		if rerr != nil {
			return nil, rerr
		}
		if replayed == nil {
			return nil, domainErrors.ErrConcurrentRequest
		}
		metrics.IdempotentReplaysTotal.WithLabelValues("transfer").Inc()
		return replayed, nil
	}
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("transfer", "error").Inc()
		return nil, err
	}

	return e.drive(ctx, saga)
}

// drive advances a PENDING saga through its legs. Shared by Execute and by
// nothing else; recovery enters at the DEBITED stage via Recover.
func (e *Engine) drive(ctx context.Context, saga *entities.TransferSaga) (*dtos.TransferResult, error) {
	if err := e.debitLeg(ctx, saga); err != nil {
		e.failPending(ctx, saga, err)
		metrics.OperationsTotal.WithLabelValues("transfer", "error").Inc()
		metrics.SagasTotal.WithLabelValues(string(entities.SagaStateFailed)).Inc()
		return nil, err
	}
	e.invalidate(ctx, saga.FromWalletID())

	creditErr := e.creditLeg(ctx, saga)
	if creditErr == nil || errors.Is(creditErr, errAlreadyCredited) {
		e.invalidate(ctx, saga.ToWalletID())
		if err := e.complete(ctx, saga); err != nil {
			// Still DEBITED in the store; recovery finishes the job.
			e.logger.ErrorContext(ctx, "saga completion failed, left for recovery",
				"saga_id", saga.ID(), "error", err)
			return nil, err
		}
		metrics.OperationsTotal.WithLabelValues("transfer", "success").Inc()
		metrics.SagasTotal.WithLabelValues(string(entities.SagaStateCompleted)).Inc()
		return e.result(saga), nil
	}

	e.logger.WarnContext(ctx, "credit leg failed, compensating",
		"saga_id", saga.ID(), "error", creditErr)
	if err := e.compensate(ctx, saga, creditErr.Error()); err != nil {
		// Compensation failed too: the saga stays DEBITED and recovery
		// retries later.
		e.logger.ErrorContext(ctx, "compensation failed, saga left for recovery",
			"saga_id", saga.ID(), "error", err)
		metrics.OperationsTotal.WithLabelValues("transfer", "error").Inc()
		return nil, creditErr
	}
	e.invalidate(ctx, saga.FromWalletID())
	e.finalizeFailed(ctx, saga, creditErr.Error())
	metrics.OperationsTotal.WithLabelValues("transfer", "error").Inc()
	metrics.SagasTotal.WithLabelValues(string(entities.SagaStateCompensated)).Inc()
	return nil, creditErr
}

// replay resolves a stored request id to the live state of its saga.
func (e *Engine) replay(ctx context.Context, requestID string) (*dtos.TransferResult, error) {
	if requestID == "" {
		return nil, nil
	}
	rec, err := e.idempotency.Find(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	var stored dtos.TransferResult
	if err := json.Unmarshal(rec.Response(), &stored); err != nil {
		return nil, fmt.Errorf("stored response for request %s is unreadable: %w", requestID, err)
	}
	sagaID, err := uuid.Parse(stored.SagaID)
	if err != nil {
		return nil, fmt.Errorf("stored saga id %q is invalid: %w", stored.SagaID, err)
	}
	saga, err := e.sagas.FindByID(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	return e.result(saga), nil
}

// initiate validates the source wallet, resolves the destination, creates
// the PENDING saga row, and journals TRANSFER_INITIATED, all in one
// transaction. A missing destination is provisioned here, inheriting the
// source's currency; a currency mismatch rejects the transfer before any
// saga row exists.
func (e *Engine) initiate(ctx context.Context, cmd dtos.TransferCommand) (*entities.TransferSaga, error) {
	var saga *entities.TransferSaga
	err := e.run(ctx, func(txCtx context.Context, buf *ports.EventBuffer) error {
		src, err := e.wallets.FindByID(txCtx, cmd.FromWalletID)
		if err != nil {
			return err
		}
		if _, err := e.destination(txCtx, cmd.ToWalletID, src.Currency(), buf); err != nil {
			return err
		}
		amount, err := valueobjects.NewMoneyFromDecimal(cmd.Amount, src.Currency())
		if err != nil {
			return err
		}
		s, err := entities.NewTransferSaga(cmd.FromWalletID, cmd.ToWalletID, amount)
		if err != nil {
			return err
		}
		if err := e.sagas.Insert(txCtx, s); err != nil {
			return err
		}

		meta := map[string]any{"sagaId": s.ID().String(), "transferTo": cmd.ToWalletID}
		if err := e.journal.Insert(txCtx, entities.NewWalletEvent(
			src.ID(), events.TransferInitiated, src.Currency(), &amount, meta,
		)); err != nil {
			return err
		}
		amt := amount.Amount()
		if err := buf.Publish(src.ID(), events.NewBusMessage(events.TransferInitiated, src.ID(), &amt, meta)); err != nil {
			return err
		}

		if cmd.RequestID != "" {
			body, err := json.Marshal(e.result(s))
			if err != nil {
				return fmt.Errorf("serialize transfer response: %w", err)
			}
			if err := e.idempotency.Insert(txCtx, entities.NewIdempotencyRecord(cmd.RequestID, body)); err != nil {
				return err
			}
		}

		saga = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saga, nil
}

// destination loads the credit-side wallet, provisioning it in the source's
// currency when no row exists yet.
func (e *Engine) destination(txCtx context.Context, walletID string, currency valueobjects.Currency, buf *ports.EventBuffer) (*entities.Wallet, error) {
	dst, err := e.wallets.FindByID(txCtx, walletID)
	switch {
	case err == nil:
		if !dst.Currency().Equals(currency) {
			return nil, domainErrors.ErrCurrencyMismatch
		}
		return dst, nil
	case domainErrors.IsNotFound(err):
		w, err := entities.NewWallet(walletID, currency)
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
	default:
		return nil, fmt.Errorf("load destination wallet %s: %w", walletID, err)
	}
}

func (e *Engine) result(saga *entities.TransferSaga) *dtos.TransferResult {
	return &dtos.TransferResult{
		SagaID:       saga.ID().String(),
		State:        string(saga.State()),
		FromWalletID: saga.FromWalletID(),
		ToWalletID:   saga.ToWalletID(),
		Amount:       saga.Amount().Amount(),
	}
}

// run executes fn in a coordinated transaction under the shared retry
// policy. The saga engine never passes a lock key; request serialization is
// handled once, around the whole saga.
func (e *Engine) run(ctx context.Context, fn func(txCtx context.Context, buf *ports.EventBuffer) error) error {
	return retry.Do(ctx, e.cfg.RetryPolicy, func(ctx context.Context) error {
		return e.coordinator.Execute(ctx, ports.RunOptions{}, fn)
	})
}

func (e *Engine) invalidate(ctx context.Context, walletID string) {
	if err := e.cache.Invalidate(ctx, walletID); err != nil {
		e.logger.WarnContext(ctx, "balance cache invalidation failed",
			"wallet_id", walletID, "error", err)
	}
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }
