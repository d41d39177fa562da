package entities

import (
	"time"

	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// WalletEvent is one row of the append-only journal. Rows are never updated
// or deleted; the constraint is enforced in the repository API (insert and
// select only), by a store-level trigger, and by the runtime role's grants.
//
// The id is assigned by the store sequence and orders events totally within
// a wallet, because per-wallet mutations are serialized by the row lock.
type WalletEvent struct {
	id        int64
	walletID  string
	eventType events.EventType
	currency  valueobjects.Currency
	amount    *valueobjects.Money // nil for events that carry no amount
	metadata  map[string]any
	createdAt time.Time
}

// NewWalletEvent builds a journal row pending insertion (id 0 until stored).
func NewWalletEvent(
	walletID string,
	eventType events.EventType,
	currency valueobjects.Currency,
	amount *valueobjects.Money,
	metadata map[string]any,
) *WalletEvent {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &WalletEvent{
		walletID:  walletID,
		eventType: eventType,
		currency:  currency,
		amount:    amount,
		metadata:  metadata,
		createdAt: time.Now().UTC(),
	}
}

// ReconstructWalletEvent hydrates a journal row from stored data.
func ReconstructWalletEvent(
	id int64,
	walletID string,
	eventType events.EventType,
	currency valueobjects.Currency,
	amount *valueobjects.Money,
	metadata map[string]any,
	createdAt time.Time,
) *WalletEvent {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &WalletEvent{
		id:        id,
		walletID:  walletID,
		eventType: eventType,
		currency:  currency,
		amount:    amount,
		metadata:  metadata,
		createdAt: createdAt,
	}
}

func (e *WalletEvent) ID() int64                      { return e.id }
func (e *WalletEvent) WalletID() string               { return e.walletID }
func (e *WalletEvent) EventType() events.EventType    { return e.eventType }
func (e *WalletEvent) Currency() valueobjects.Currency { return e.currency }
func (e *WalletEvent) Amount() *valueobjects.Money    { return e.amount }
func (e *WalletEvent) CreatedAt() time.Time           { return e.createdAt }

// Metadata returns a copy; journal rows are immutable once built.
func (e *WalletEvent) Metadata() map[string]any {
	out := make(map[string]any, len(e.metadata))
	for k, v := range e.metadata {
		out[k] = v
	}
	return out
}
