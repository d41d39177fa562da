// Package events defines the journal event vocabulary and the wire format
// published to the event bus.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventType enumerates every state change recorded in the wallet journal.
type EventType string

const (
	WalletCreated       EventType = "WALLET_CREATED"
	FundsDeposited      EventType = "FUNDS_DEPOSITED"
	FundsWithdrawn      EventType = "FUNDS_WITHDRAWN"
	TransferInitiated   EventType = "TRANSFER_INITIATED"
	TransferCompleted   EventType = "TRANSFER_COMPLETED"
	TransferFailed      EventType = "TRANSFER_FAILED"
	TransferCompensated EventType = "TRANSFER_COMPENSATED"
	WalletFrozen        EventType = "WALLET_FROZEN"
	WalletUnfrozen      EventType = "WALLET_UNFROZEN"
	WalletClosed        EventType = "WALLET_CLOSED"
	DailyLimitSet       EventType = "DAILY_LIMIT_SET"
	DailyLimitRemoved   EventType = "DAILY_LIMIT_REMOVED"
)

// IsValid checks the event type against the known set.
func (t EventType) IsValid() bool {
	switch t {
	case WalletCreated, FundsDeposited, FundsWithdrawn,
		TransferInitiated, TransferCompleted, TransferFailed, TransferCompensated,
		WalletFrozen, WalletUnfrozen, WalletClosed,
		DailyLimitSet, DailyLimitRemoved:
		return true
	default:
		return false
	}
}

// RoutingKey returns the topic routing key for the event, e.g.
// "wallet.funds_deposited".
func (t EventType) RoutingKey() string {
	return "wallet." + strings.ToLower(string(t))
}

// BusMessage is the JSON body published to the event bus. Amount is omitted
// for events that carry none.
type BusMessage struct {
	EventType EventType        `json:"eventType"`
	WalletID  string           `json:"walletId"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Metadata  map[string]any   `json:"metadata"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewBusMessage builds a bus message stamped with the current UTC time.
func NewBusMessage(eventType EventType, walletID string, amount *decimal.Decimal, metadata map[string]any) BusMessage {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return BusMessage{
		EventType: eventType,
		WalletID:  walletID,
		Amount:    amount,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
}

// Marshal serializes the message body.
func (m BusMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalBusMessage parses a message body received from the bus.
func UnmarshalBusMessage(body []byte) (BusMessage, error) {
	var m BusMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return BusMessage{}, err
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	return m, nil
}

// IdempotencyKey derives the consumer-side dedup key:
// SHA-256 of walletId|eventType|timestamp|amount?, hex-encoded. Consumers
// see at-least-once delivery; this key makes redelivery a no-op.
func (m BusMessage) IdempotencyKey() string {
	parts := []string{
		m.WalletID,
		string(m.EventType),
		m.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if m.Amount != nil {
		parts = append(parts, m.Amount.String())
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
