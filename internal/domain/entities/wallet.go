// Package entities - Wallet is the per-account balance aggregate. All
// mutations go through its methods so the invariants (non-negative balance,
// daily withdrawal window, status rules) cannot be bypassed.
package entities

import (
	"time"

	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// WalletStatus is the operational status of a wallet.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "ACTIVE"
	WalletStatusFrozen WalletStatus = "FROZEN"
	WalletStatusClosed WalletStatus = "CLOSED"
)

// IsValid checks the status against the known set.
func (s WalletStatus) IsValid() bool {
	switch s {
	case WalletStatusActive, WalletStatusFrozen, WalletStatusClosed:
		return true
	default:
		return false
	}
}

// Wallet is keyed by an opaque client-supplied identifier. Wallets are never
// deleted; CLOSED is a terminal status.
//
// version implements optimistic conflict detection: every persisted mutation
// increments it, and the repository refuses an UPDATE whose expected version
// no longer matches.
type Wallet struct {
	id       string
	currency valueobjects.Currency
	status   WalletStatus
	balance  valueobjects.Money

	dailyWithdrawalLimit *valueobjects.Money // nil means unbounded
	dailyWithdrawalTotal valueobjects.Money
	lastWithdrawalDate   *time.Time // UTC date of the most recent withdrawal

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewWallet provisions a wallet with zero balance in ACTIVE status.
func NewWallet(id string, currency valueobjects.Currency) (*Wallet, error) {
	if id == "" {
		return nil, errors.ValidationError{Field: "walletId", Message: "wallet id is required"}
	}
	if currency.IsZero() {
		return nil, errors.ValidationError{Field: "currency", Message: "currency is required"}
	}

	now := time.Now().UTC()
	return &Wallet{
		id:                   id,
		currency:             currency,
		status:               WalletStatusActive,
		balance:              valueobjects.Zero(currency),
		dailyWithdrawalTotal: valueobjects.Zero(currency),
		version:              0,
		createdAt:            now,
		updatedAt:            now,
	}, nil
}

// ReconstructWallet hydrates a Wallet from stored data.
func ReconstructWallet(
	id string,
	currency valueobjects.Currency,
	status WalletStatus,
	balance valueobjects.Money,
	dailyWithdrawalLimit *valueobjects.Money,
	dailyWithdrawalTotal valueobjects.Money,
	lastWithdrawalDate *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Wallet {
	return &Wallet{
		id:                   id,
		currency:             currency,
		status:               status,
		balance:              balance,
		dailyWithdrawalLimit: dailyWithdrawalLimit,
		dailyWithdrawalTotal: dailyWithdrawalTotal,
		lastWithdrawalDate:   lastWithdrawalDate,
		version:              version,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}

// Getters

func (w *Wallet) ID() string                           { return w.id }
func (w *Wallet) Currency() valueobjects.Currency      { return w.currency }
func (w *Wallet) Status() WalletStatus                 { return w.status }
func (w *Wallet) Balance() valueobjects.Money          { return w.balance }
func (w *Wallet) DailyWithdrawalLimit() *valueobjects.Money {
	return w.dailyWithdrawalLimit
}
func (w *Wallet) DailyWithdrawalTotal() valueobjects.Money { return w.dailyWithdrawalTotal }
func (w *Wallet) LastWithdrawalDate() *time.Time           { return w.lastWithdrawalDate }
func (w *Wallet) Version() int64                           { return w.version }
func (w *Wallet) CreatedAt() time.Time                     { return w.createdAt }
func (w *Wallet) UpdatedAt() time.Time                     { return w.updatedAt }

// touch bumps the version and timestamp after a successful mutation.
func (w *Wallet) touch() {
	w.version++
	w.updatedAt = time.Now().UTC()
}

// Credit adds amount to the balance. The wallet must be ACTIVE.
func (w *Wallet) Credit(amount valueobjects.Money) error {
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}
	if !w.currency.Equals(amount.Currency()) {
		return errors.ErrCurrencyMismatch
	}
	if w.status != WalletStatusActive {
		return errors.ErrWalletNotActive
	}

	newBalance, err := w.balance.Add(amount)
	if err != nil {
		return err
	}
	w.balance = newBalance
	w.touch()
	return nil
}

// CreditCompensation refunds amount during saga compensation. Compensation
// is a privileged path: a FROZEN source still receives the refund. A CLOSED
// source does not; the saga terminates FAILED instead.
func (w *Wallet) CreditCompensation(amount valueobjects.Money) error {
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}
	if !w.currency.Equals(amount.Currency()) {
		return errors.ErrCurrencyMismatch
	}
	if w.status == WalletStatusClosed {
		return errors.ErrWalletClosed
	}

	newBalance, err := w.balance.Add(amount)
	if err != nil {
		return err
	}
	w.balance = newBalance
	w.touch()
	return nil
}

// Withdraw removes amount from the balance, enforcing the daily withdrawal
// window. The window resets on the first withdrawal of a new UTC calendar
// date. now is injected for testability; callers pass time.Now().
func (w *Wallet) Withdraw(amount valueobjects.Money, now time.Time) error {
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}
	if !w.currency.Equals(amount.Currency()) {
		return errors.ErrCurrencyMismatch
	}
	if w.status != WalletStatusActive {
		return errors.ErrWalletNotActive
	}

	today := truncateToDate(now.UTC())

	total := w.dailyWithdrawalTotal
	if w.lastWithdrawalDate == nil || w.lastWithdrawalDate.Before(today) {
		total = valueobjects.Zero(w.currency)
	}

	wouldBeTotal, err := total.Add(amount)
	if err != nil {
		return err
	}
	if w.dailyWithdrawalLimit != nil && wouldBeTotal.GreaterThan(*w.dailyWithdrawalLimit) {
		return errors.ErrWithdrawalLimitExceeded
	}

	if w.balance.LessThan(amount) {
		return errors.ErrInsufficientFunds
	}

	newBalance, err := w.balance.Sub(amount)
	if err != nil {
		return err
	}

	w.balance = newBalance
	w.dailyWithdrawalTotal = wouldBeTotal
	w.lastWithdrawalDate = &today
	w.touch()
	return nil
}

// Freeze transitions ACTIVE -> FROZEN. Freezing a CLOSED wallet is rejected;
// freezing a FROZEN wallet is a no-op and reports changed=false.
func (w *Wallet) Freeze() (changed bool, err error) {
	switch w.status {
	case WalletStatusClosed:
		return false, errors.ErrWalletClosed
	case WalletStatusFrozen:
		return false, nil
	}
	w.status = WalletStatusFrozen
	w.touch()
	return true, nil
}

// Unfreeze transitions FROZEN -> ACTIVE. Unfreeze from ACTIVE is a no-op.
func (w *Wallet) Unfreeze() (changed bool, err error) {
	switch w.status {
	case WalletStatusClosed:
		return false, errors.ErrWalletClosed
	case WalletStatusActive:
		return false, nil
	}
	w.status = WalletStatusActive
	w.touch()
	return true, nil
}

// Close transitions to CLOSED. The balance must be exactly zero.
func (w *Wallet) Close() (changed bool, err error) {
	if w.status == WalletStatusClosed {
		return false, nil
	}
	if !w.balance.IsZero() {
		return false, errors.ErrNonZeroBalance
	}
	w.status = WalletStatusClosed
	w.touch()
	return true, nil
}

// SetDailyWithdrawalLimit sets the limit. The limit must be strictly
// positive; use ClearDailyWithdrawalLimit to remove it.
func (w *Wallet) SetDailyWithdrawalLimit(limit valueobjects.Money) error {
	if w.status == WalletStatusClosed {
		return errors.ErrWalletClosed
	}
	if !limit.IsPositive() {
		return errors.ErrInvalidAmount
	}
	if !w.currency.Equals(limit.Currency()) {
		return errors.ErrCurrencyMismatch
	}
	w.dailyWithdrawalLimit = &limit
	w.touch()
	return nil
}

// ClearDailyWithdrawalLimit removes the limit (unbounded withdrawals).
func (w *Wallet) ClearDailyWithdrawalLimit() error {
	if w.status == WalletStatusClosed {
		return errors.ErrWalletClosed
	}
	w.dailyWithdrawalLimit = nil
	w.touch()
	return nil
}

// truncateToDate drops the time-of-day component, keeping the UTC date.
func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
