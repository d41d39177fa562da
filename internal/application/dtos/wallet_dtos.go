// Package dtos holds the request/response shapes crossing the application
// boundary. These are also the payloads stored in idempotency records, so
// their JSON form is part of the service contract.
package dtos

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Balances and amounts serialize as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DepositCommand credits a wallet, auto-provisioning it when unknown.
type DepositCommand struct {
	WalletID  string
	Amount    decimal.Decimal
	RequestID string // optional idempotency key
}

// WithdrawCommand debits a wallet.
type WithdrawCommand struct {
	WalletID  string
	Amount    decimal.Decimal
	RequestID string
}

// TransferCommand moves funds between two wallets via the saga engine.
type TransferCommand struct {
	FromWalletID string
	ToWalletID   string
	Amount       decimal.Decimal
	RequestID    string
}

// SetDailyLimitCommand sets or clears the daily withdrawal limit.
// A nil Limit clears it.
type SetDailyLimitCommand struct {
	WalletID  string
	Limit     *decimal.Decimal
	RequestID string
}

// BalanceResult is returned by deposits, withdrawals and balance queries.
type BalanceResult struct {
	WalletID string          `json:"walletId"`
	Balance  decimal.Decimal `json:"balance"`
}

// WalletStateResult is returned by admin transitions.
type WalletStateResult struct {
	WalletID string          `json:"walletId"`
	Status   string          `json:"status"`
	Balance  decimal.Decimal `json:"balance"`
}

// TransferResult is returned by the transfer saga.
type TransferResult struct {
	SagaID       string          `json:"sagaId"`
	State        string          `json:"state"`
	FromWalletID string          `json:"fromWalletId"`
	ToWalletID   string          `json:"toWalletId"`
	Amount       decimal.Decimal `json:"amount"`
}

// EventDTO is one journal entry in a history listing.
type EventDTO struct {
	ID        int64            `json:"id"`
	WalletID  string           `json:"walletId"`
	EventType string           `json:"eventType"`
	Currency  string           `json:"currency"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Metadata  map[string]any   `json:"metadata"`
	CreatedAt time.Time        `json:"createdAt"`
}

// HistoryResult is an ordered (newest first) page of journal entries.
type HistoryResult struct {
	WalletID string     `json:"walletId"`
	Events   []EventDTO `json:"events"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}
