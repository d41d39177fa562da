package wallet

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
)

func TestFreeze_EmitsEventOnTransition(t *testing.T) {
	f := newFixture(t)
	w := activeWallet(t, "w-1", "25.00")
	f.wallets.findByIDForUpdateFn = func(ctx context.Context, id string) (*entities.Wallet, error) {
		return w, nil
	}

	result, err := f.engine.Freeze(context.Background(), "w-1", "")
	require.NoError(t, err)
	assert.Equal(t, string(entities.WalletStatusFrozen), result.Status)
	require.Len(t, f.journal.events, 1)
	assert.Equal(t, events.WalletFrozen, f.journal.events[0].EventType())
	require.Len(t, f.coordinator.rows, 1)
}

func TestFreeze_AlreadyFrozenIsQuietNoOp(t *testing.T) {
	f := newFixture(t)
	w := activeWallet(t, "w-1", "0")
	_, err := w.Freeze()
	require.NoError(t, err)
	f.wallets.findByIDForUpdateFn = func(ctx context.Context, id string) (*entities.Wallet, error) {
		return w, nil
	}

	result, err := f.engine.Freeze(context.Background(), "w-1", "")
	require.NoError(t, err)
	assert.Equal(t, string(entities.WalletStatusFrozen), result.Status)
	// No event, no update: nothing changed.
	assert.Empty(t, f.journal.events)
	assert.Empty(t, f.wallets.updated)
	assert.Empty(t, f.coordinator.rows)
}

func TestUnfreeze_RestoresActive(t *testing.T) {
	f := newFixture(t)
	w := activeWallet(t, "w-1", "0")
	_, err := w.Freeze()
	require.NoError(t, err)
	f.wallets.findByIDForUpdateFn = func(ctx context.Context, id string) (*entities.Wallet, error) {
		return w, nil
	}

	result, err := f.engine.Unfreeze(context.Background(), "w-1", "")
	require.NoError(t, err)
	assert.Equal(t, string(entities.WalletStatusActive), result.Status)
	require.Len(t, f.journal.events, 1)
	assert.Equal(t, events.WalletUnfrozen, f.journal.events[0].EventType())
}

func TestClose_RequiresZeroBalance(t *testing.T) {
	f := newFixture(t)
	w := activeWallet(t, "w-1", "0.01")
	f.wallets.findByIDForUpdateFn = func(ctx context.Context, id string) (*entities.Wallet, error) {
		return w, nil
	}

	_, err := f.engine.Close(context.Background(), "w-1", "")
	assert.ErrorIs(t, err, domainErrors.ErrNonZeroBalance)
	assert.Empty(t, f.journal.events)
}

func TestClose_IsTerminal(t *testing.T) {
	f := newFixture(t)
	w := activeWallet(t, "w-1", "0")
	f.wallets.findByIDForUpdateFn = func(ctx context.Context, id string) (*entities.Wallet, error) {
		return w, nil
	}

	result, err := f.engine.Close(context.Background(), "w-1", "")
	require.NoError(t, err)
	assert.Equal(t, string(entities.WalletStatusClosed), result.Status)

	// Closed wallets reject further transitions.
	_, err = f.engine.Freeze(context.Background(), "w-1", "")
	assert.ErrorIs(t, err, domainErrors.ErrWalletClosed)
}

func TestSetDailyLimit_SetAndClear(t *testing.T) {
	f := newFixture(t)
	w := activeWallet(t, "w-1", "0")
	f.wallets.findByIDForUpdateFn = func(ctx context.Context, id string) (*entities.Wallet, error) {
		return w, nil
	}

	limit := decimal.RequireFromString("500")
	_, err := f.engine.SetDailyLimit(context.Background(), dtos.SetDailyLimitCommand{
		WalletID: "w-1",
		Limit:    &limit,
	})
	require.NoError(t, err)
	require.NotNil(t, w.DailyWithdrawalLimit())
	require.Len(t, f.journal.events, 1)
	assert.Equal(t, events.DailyLimitSet, f.journal.events[0].EventType())
	require.NotNil(t, f.journal.events[0].Amount())

	_, err = f.engine.SetDailyLimit(context.Background(), dtos.SetDailyLimitCommand{
		WalletID: "w-1",
	})
	require.NoError(t, err)
	assert.Nil(t, w.DailyWithdrawalLimit())
	require.Len(t, f.journal.events, 2)
	assert.Equal(t, events.DailyLimitRemoved, f.journal.events[1].EventType())
	assert.Nil(t, f.journal.events[1].Amount())
}

func TestAdminOperations_DropCachedBalance(t *testing.T) {
	f := newFixture(t)
	w := activeWallet(t, "w-1", "25.00")
	f.wallets.findByIDForUpdateFn = func(ctx context.Context, id string) (*entities.Wallet, error) {
		return w, nil
	}

	_, err := f.engine.Freeze(context.Background(), "w-1", "")
	require.NoError(t, err)
	_, err = f.engine.Unfreeze(context.Background(), "w-1", "")
	require.NoError(t, err)

	limit := decimal.RequireFromString("500")
	_, err = f.engine.SetDailyLimit(context.Background(), dtos.SetDailyLimitCommand{
		WalletID: "w-1",
		Limit:    &limit,
	})
	require.NoError(t, err)

	// Every successful admin change drops the cached balance so reads go
	// back to the store.
	assert.Equal(t, []string{"w-1", "w-1", "w-1"}, f.cache.invalidated)
}

func TestSetDailyLimit_RejectsNonPositive(t *testing.T) {
	f := newFixture(t)
	limit := decimal.Zero

	_, err := f.engine.SetDailyLimit(context.Background(), dtos.SetDailyLimitCommand{
		WalletID: "w-1",
		Limit:    &limit,
	})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidAmount)
	assert.Zero(t, f.coordinator.calls)
}
