package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "wallet.funds_withdrawn", FundsWithdrawn.RoutingKey())
	assert.Equal(t, "wallet.transfer_completed", TransferCompleted.RoutingKey())
}

func TestBusMessage_RoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("100.50")
	msg := NewBusMessage(FundsDeposited, "alice", &amount, map[string]any{"requestId": "req-1"})

	body, err := msg.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalBusMessage(body)
	require.NoError(t, err)
	assert.Equal(t, FundsDeposited, got.EventType)
	assert.Equal(t, "alice", got.WalletID)
	require.NotNil(t, got.Amount)
	assert.True(t, got.Amount.Equal(amount))
	assert.Equal(t, "req-1", got.Metadata["requestId"])
}

func TestUnmarshalBusMessage_DefaultsMetadata(t *testing.T) {
	got, err := UnmarshalBusMessage([]byte(`{"eventType":"WALLET_FROZEN","walletId":"alice","timestamp":"2026-03-10T12:00:00Z"}`))
	require.NoError(t, err)
	assert.NotNil(t, got.Metadata)
	assert.Nil(t, got.Amount)
}

func TestUnmarshalBusMessage_RejectsGarbage(t *testing.T) {
	_, err := UnmarshalBusMessage([]byte(`{not json`))
	assert.Error(t, err)
}

func TestIdempotencyKey_StableAcrossRedelivery(t *testing.T) {
	amount := decimal.RequireFromString("10.00")
	ts := time.Date(2026, 3, 10, 12, 0, 0, 123456789, time.UTC)

	a := BusMessage{EventType: FundsWithdrawn, WalletID: "alice", Amount: &amount, Timestamp: ts}
	b := BusMessage{EventType: FundsWithdrawn, WalletID: "alice", Amount: &amount, Timestamp: ts}

	assert.Equal(t, a.IdempotencyKey(), b.IdempotencyKey())
	assert.Len(t, a.IdempotencyKey(), 64)
}

func TestIdempotencyKey_DistinguishesMessages(t *testing.T) {
	amount := decimal.RequireFromString("10.00")
	other := decimal.RequireFromString("10.01")
	ts := time.Now().UTC()

	base := BusMessage{EventType: FundsWithdrawn, WalletID: "alice", Amount: &amount, Timestamp: ts}

	differentWallet := base
	differentWallet.WalletID = "bob"
	assert.NotEqual(t, base.IdempotencyKey(), differentWallet.IdempotencyKey())

	differentType := base
	differentType.EventType = FundsDeposited
	assert.NotEqual(t, base.IdempotencyKey(), differentType.IdempotencyKey())

	differentAmount := base
	differentAmount.Amount = &other
	assert.NotEqual(t, base.IdempotencyKey(), differentAmount.IdempotencyKey())

	differentTime := base
	differentTime.Timestamp = ts.Add(time.Nanosecond)
	assert.NotEqual(t, base.IdempotencyKey(), differentTime.IdempotencyKey())
}

func TestIdempotencyKey_NoAmountOmitsSegment(t *testing.T) {
	ts := time.Now().UTC()
	withNone := BusMessage{EventType: WalletFrozen, WalletID: "alice", Timestamp: ts}

	assert.NotPanics(t, func() { withNone.IdempotencyKey() })
	assert.Len(t, withNone.IdempotencyKey(), 64)
}
