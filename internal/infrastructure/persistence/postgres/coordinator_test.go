package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/events"
)

// stubTx makes a context look transactional; the nested path never touches
// the transaction itself.
type stubTx struct{ pgx.Tx }

func TestExecute_NestedJoinsOuterBuffer(t *testing.T) {
	c := NewCoordinator(nil, nil, nil, nil, nil)

	outer := &ports.EventBuffer{}
	ctx := injectBuffer(injectTx(context.Background(), stubTx{}), outer)

	err := c.Execute(ctx, ports.RunOptions{}, func(txCtx context.Context, buf *ports.EventBuffer) error {
		assert.Same(t, outer, buf)
		return buf.Publish("w-1", events.NewBusMessage(events.FundsDeposited, "w-1", nil, nil))
	})
	require.NoError(t, err)

	// The staged row lands in the outer buffer, not a discarded copy.
	require.Len(t, outer.Rows(), 1)
	assert.Equal(t, events.FundsDeposited, outer.Rows()[0].EventType())
}

func TestExecute_NestedWithoutBufferErrors(t *testing.T) {
	c := NewCoordinator(nil, nil, nil, nil, nil)
	ctx := injectTx(context.Background(), stubTx{})

	called := false
	err := c.Execute(ctx, ports.RunOptions{}, func(context.Context, *ports.EventBuffer) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}
