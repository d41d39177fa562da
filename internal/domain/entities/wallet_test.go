package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

var usd = valueobjects.MustCurrency("USD")

func money(t *testing.T, amount string) valueobjects.Money {
	t.Helper()
	m, err := valueobjects.NewMoney(amount, usd)
	require.NoError(t, err)
	return m
}

func newWallet(t *testing.T) *Wallet {
	t.Helper()
	w, err := NewWallet("alice", usd)
	require.NoError(t, err)
	return w
}

func TestNewWallet_StartsActiveWithZeroBalance(t *testing.T) {
	w := newWallet(t)

	assert.Equal(t, WalletStatusActive, w.Status())
	assert.True(t, w.Balance().IsZero())
	assert.Equal(t, int64(0), w.Version())
	assert.Nil(t, w.DailyWithdrawalLimit())
}

func TestNewWallet_RequiresIDAndCurrency(t *testing.T) {
	_, err := NewWallet("", usd)
	assert.True(t, errors.IsValidation(err))

	_, err = NewWallet("alice", valueobjects.Currency{})
	assert.True(t, errors.IsValidation(err))
}

func TestCredit_BumpsBalanceAndVersion(t *testing.T) {
	w := newWallet(t)

	require.NoError(t, w.Credit(money(t, "100.00")))
	require.NoError(t, w.Credit(money(t, "0.50")))

	assert.Equal(t, "100.50", w.Balance().StringFixed())
	assert.Equal(t, int64(2), w.Version())
}

func TestCredit_Rejections(t *testing.T) {
	w := newWallet(t)

	err := w.Credit(valueobjects.Zero(usd))
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)

	eur, errM := valueobjects.NewMoney("1.00", valueobjects.MustCurrency("EUR"))
	require.NoError(t, errM)
	assert.ErrorIs(t, w.Credit(eur), errors.ErrCurrencyMismatch)

	_, err = w.Freeze()
	require.NoError(t, err)
	assert.ErrorIs(t, w.Credit(money(t, "1.00")), errors.ErrWalletNotActive)
}

func TestWithdraw_HappyPath(t *testing.T) {
	w := newWallet(t)
	require.NoError(t, w.Credit(money(t, "100.00")))

	require.NoError(t, w.Withdraw(money(t, "40.00"), time.Now()))

	assert.Equal(t, "60.00", w.Balance().StringFixed())
	assert.Equal(t, "40.00", w.DailyWithdrawalTotal().StringFixed())
	require.NotNil(t, w.LastWithdrawalDate())
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	w := newWallet(t)
	require.NoError(t, w.Credit(money(t, "10.00")))

	err := w.Withdraw(money(t, "10.01"), time.Now())
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	assert.Equal(t, "10.00", w.Balance().StringFixed(), "failed withdrawal must not mutate")
}

func TestWithdraw_DailyLimit(t *testing.T) {
	w := newWallet(t)
	require.NoError(t, w.Credit(money(t, "1000.00")))
	require.NoError(t, w.SetDailyWithdrawalLimit(money(t, "100.00")))

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, w.Withdraw(money(t, "60.00"), now))
	require.NoError(t, w.Withdraw(money(t, "40.00"), now))

	// Budget exhausted for the day.
	err := w.Withdraw(money(t, "0.01"), now)
	assert.ErrorIs(t, err, errors.ErrWithdrawalLimitExceeded)

	// A new UTC date resets the window.
	nextDay := now.Add(24 * time.Hour)
	require.NoError(t, w.Withdraw(money(t, "100.00"), nextDay))
	assert.Equal(t, "100.00", w.DailyWithdrawalTotal().StringFixed())
}

func TestWithdraw_LimitCheckedBeforeBalance(t *testing.T) {
	w := newWallet(t)
	require.NoError(t, w.Credit(money(t, "10.00")))
	require.NoError(t, w.SetDailyWithdrawalLimit(money(t, "5.00")))

	// Over both limit and balance: the limit verdict wins.
	err := w.Withdraw(money(t, "20.00"), time.Now())
	assert.ErrorIs(t, err, errors.ErrWithdrawalLimitExceeded)
}

func TestFreezeUnfreeze(t *testing.T) {
	w := newWallet(t)

	changed, err := w.Freeze()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, WalletStatusFrozen, w.Status())

	// Idempotent repeat.
	changed, err = w.Freeze()
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = w.Unfreeze()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, WalletStatusActive, w.Status())

	changed, err = w.Unfreeze()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestClose_RequiresZeroBalance(t *testing.T) {
	w := newWallet(t)
	require.NoError(t, w.Credit(money(t, "1.00")))

	_, err := w.Close()
	assert.ErrorIs(t, err, errors.ErrNonZeroBalance)

	require.NoError(t, w.Withdraw(money(t, "1.00"), time.Now()))
	changed, err := w.Close()
	require.NoError(t, err)
	assert.True(t, changed)

	// Closed is terminal.
	_, err = w.Freeze()
	assert.ErrorIs(t, err, errors.ErrWalletClosed)
	_, err = w.Unfreeze()
	assert.ErrorIs(t, err, errors.ErrWalletClosed)
	assert.ErrorIs(t, w.SetDailyWithdrawalLimit(money(t, "1.00")), errors.ErrWalletClosed)

	changed, err = w.Close()
	require.NoError(t, err)
	assert.False(t, changed, "closing a closed wallet is a no-op")
}

func TestCreditCompensation_ReachesFrozenButNotClosed(t *testing.T) {
	w := newWallet(t)
	_, err := w.Freeze()
	require.NoError(t, err)

	require.NoError(t, w.CreditCompensation(money(t, "25.00")))
	assert.Equal(t, "25.00", w.Balance().StringFixed())

	closed := newWallet(t)
	_, err = closed.Close()
	require.NoError(t, err)
	assert.ErrorIs(t, closed.CreditCompensation(money(t, "1.00")), errors.ErrWalletClosed)
}

func TestSetDailyWithdrawalLimit_Validation(t *testing.T) {
	w := newWallet(t)

	assert.ErrorIs(t, w.SetDailyWithdrawalLimit(valueobjects.Zero(usd)), errors.ErrInvalidAmount)

	eur, err := valueobjects.NewMoney("5.00", valueobjects.MustCurrency("EUR"))
	require.NoError(t, err)
	assert.ErrorIs(t, w.SetDailyWithdrawalLimit(eur), errors.ErrCurrencyMismatch)

	require.NoError(t, w.SetDailyWithdrawalLimit(money(t, "5.00")))
	require.NotNil(t, w.DailyWithdrawalLimit())

	require.NoError(t, w.ClearDailyWithdrawalLimit())
	assert.Nil(t, w.DailyWithdrawalLimit())
}
