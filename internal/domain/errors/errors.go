// Package errors defines the domain error taxonomy. Typed errors let
// callers branch on the case they care about and let the HTTP layer map
// failures to status codes without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain rules. Business-rule failures are final: the
// enclosing transaction rolls back and the operation is not retried.
var (
	// Lookup errors
	ErrWalletNotFound = errors.New("wallet not found")
	ErrSagaNotFound   = errors.New("transfer saga not found")

	// Validation errors
	ErrInvalidAmount = errors.New("amount must be strictly positive")

	// Business rule errors
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrWalletNotActive          = errors.New("wallet is not active")
	ErrWalletClosed             = errors.New("wallet is closed")
	ErrWithdrawalLimitExceeded  = errors.New("daily withdrawal limit exceeded")
	ErrCurrencyMismatch         = errors.New("currency mismatch")
	ErrNonZeroBalance           = errors.New("wallet balance must be zero")
	ErrTransferToSelf           = errors.New("cannot transfer to the same wallet")

	// Concurrency errors
	ErrConcurrentRequest = errors.New("another request with the same request id is in flight")
	ErrDuplicateRequest  = errors.New("request id already recorded")

	// ErrEventAlreadyRecorded signals that a journal row keyed on the same
	// (saga, event type) pair already exists. The saga engine uses it to
	// detect a credit leg that already ran. Never retried.
	ErrEventAlreadyRecorded = errors.New("journal event already recorded")
)

// ValidationError is a field-level input failure. Fails fast, before any
// side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
}

// ConcurrencyError marks transient store conflicts: serialization failures,
// deadlocks, optimistic version mismatches, and unique violations on
// insert-if-missing races. These are the only retryable errors.
type ConcurrencyError struct {
	EntityType string
	EntityID   string
	Message    string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict on %s [%s]: %s", e.EntityType, e.EntityID, e.Message)
}

// NewConcurrencyError creates a ConcurrencyError.
func NewConcurrencyError(entityType, entityID, message string) *ConcurrencyError {
	return &ConcurrencyError{EntityType: entityType, EntityID: entityID, Message: message}
}

// IllegalTransitionError is a programming error: a state machine was asked
// to take an edge the model does not declare. Never retried, never
// compensated; it surfaces as a 500.
type IllegalTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition %s -> %s", e.Entity, e.From, e.To)
}

// NewIllegalTransition creates an IllegalTransitionError.
func NewIllegalTransition(entity, from, to string) *IllegalTransitionError {
	return &IllegalTransitionError{Entity: entity, From: from, To: to}
}

// Classification helpers

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound) || errors.Is(err, ErrSagaNotFound)
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidAmount)
}

// IsBusinessRule reports whether err is a business rule violation. These
// map to HTTP 422 and must never be retried.
func IsBusinessRule(err error) bool {
	for _, sentinel := range []error{
		ErrInsufficientFunds,
		ErrWalletNotActive,
		ErrWalletClosed,
		ErrWithdrawalLimitExceeded,
		ErrCurrencyMismatch,
		ErrNonZeroBalance,
		ErrTransferToSelf,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// IsConcurrency reports whether err is a transient store conflict.
func IsConcurrency(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce) || errors.Is(err, ErrConcurrentRequest) || errors.Is(err, ErrDuplicateRequest)
}

// IsRetryable reports whether the shared retry policy may re-run the
// operation. Business and validation failures are final by definition.
// ErrDuplicateRequest is deliberately not retryable: the caller translates
// it to the stored response instead of re-running.
func IsRetryable(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

// IsIllegalTransition reports whether err is a state machine programming
// error.
func IsIllegalTransition(err error) bool {
	var it *IllegalTransitionError
	return errors.As(err, &it)
}

// Code returns the machine-readable error type used in API envelopes and
// logs. Unknown errors return "Internal".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrWalletNotActive):
		return "WalletNotActive"
	case errors.Is(err, ErrWalletClosed):
		return "WalletClosed"
	case errors.Is(err, ErrWithdrawalLimitExceeded):
		return "WithdrawalLimitExceeded"
	case errors.Is(err, ErrCurrencyMismatch):
		return "CurrencyMismatch"
	case errors.Is(err, ErrNonZeroBalance):
		return "NonZeroBalance"
	case errors.Is(err, ErrTransferToSelf):
		return "TransferToSelf"
	case errors.Is(err, ErrWalletNotFound):
		return "WalletNotFound"
	case errors.Is(err, ErrSagaNotFound):
		return "SagaNotFound"
	case errors.Is(err, ErrConcurrentRequest):
		return "ConcurrentRequest"
	case IsValidation(err):
		return "Validation"
	case IsConcurrency(err):
		return "Conflict"
	case IsIllegalTransition(err):
		return "IllegalTransition"
	default:
		return "Internal"
	}
}
