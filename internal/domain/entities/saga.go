package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// SagaState is the persisted state of a transfer saga.
type SagaState string

const (
	SagaStatePending     SagaState = "PENDING"
	SagaStateDebited     SagaState = "DEBITED"
	SagaStateCompleted   SagaState = "COMPLETED"
	SagaStateCompensated SagaState = "COMPENSATED"
	SagaStateFailed      SagaState = "FAILED"
)

// legalSagaTransitions declares the only edges the state machine may take.
// Anything else is a programming error and fails loudly.
var legalSagaTransitions = map[SagaState][]SagaState{
	SagaStatePending:     {SagaStateDebited, SagaStateFailed},
	SagaStateDebited:     {SagaStateCompleted, SagaStateCompensated},
	SagaStateCompensated: {SagaStateFailed},
}

// IsTerminal reports whether no further transition is allowed.
func (s SagaState) IsTerminal() bool {
	return s == SagaStateCompleted || s == SagaStateFailed
}

// CanTransitionTo checks the transition table.
func (s SagaState) CanTransitionTo(next SagaState) bool {
	for _, allowed := range legalSagaTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransferSaga coordinates a two-leg transfer between wallets. Each leg runs
// in its own store transaction; the saga row is the durable record that lets
// recovery resume an interrupted transfer.
type TransferSaga struct {
	id           uuid.UUID
	fromWalletID string
	toWalletID   string
	amount       valueobjects.Money
	state        SagaState
	metadata     map[string]any
	createdAt    time.Time
	updatedAt    time.Time
}

// NewTransferSaga creates a saga in PENDING state.
func NewTransferSaga(fromWalletID, toWalletID string, amount valueobjects.Money) (*TransferSaga, error) {
	if fromWalletID == "" || toWalletID == "" {
		return nil, errors.ValidationError{Field: "walletId", Message: "wallet ids are required"}
	}
	if fromWalletID == toWalletID {
		return nil, errors.ErrTransferToSelf
	}
	if !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &TransferSaga{
		id:           uuid.New(),
		fromWalletID: fromWalletID,
		toWalletID:   toWalletID,
		amount:       amount,
		state:        SagaStatePending,
		metadata:     map[string]any{},
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructTransferSaga hydrates a saga from stored data.
func ReconstructTransferSaga(
	id uuid.UUID,
	fromWalletID, toWalletID string,
	amount valueobjects.Money,
	state SagaState,
	metadata map[string]any,
	createdAt, updatedAt time.Time,
) *TransferSaga {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &TransferSaga{
		id:           id,
		fromWalletID: fromWalletID,
		toWalletID:   toWalletID,
		amount:       amount,
		state:        state,
		metadata:     metadata,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (s *TransferSaga) ID() uuid.UUID              { return s.id }
func (s *TransferSaga) FromWalletID() string       { return s.fromWalletID }
func (s *TransferSaga) ToWalletID() string         { return s.toWalletID }
func (s *TransferSaga) Amount() valueobjects.Money { return s.amount }
func (s *TransferSaga) State() SagaState           { return s.state }
func (s *TransferSaga) CreatedAt() time.Time       { return s.createdAt }
func (s *TransferSaga) UpdatedAt() time.Time       { return s.updatedAt }

// Metadata returns a copy of the saga metadata.
func (s *TransferSaga) Metadata() map[string]any {
	out := make(map[string]any, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

// TransitionTo moves the saga along a declared edge and records why.
// An undeclared edge returns an IllegalTransitionError.
func (s *TransferSaga) TransitionTo(next SagaState, reason string) error {
	if !s.state.CanTransitionTo(next) {
		return errors.NewIllegalTransition("TransferSaga", string(s.state), string(next))
	}
	s.state = next
	if reason != "" {
		s.metadata["reason"] = reason
	}
	s.updatedAt = time.Now().UTC()
	return nil
}
