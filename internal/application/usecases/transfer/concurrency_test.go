package transfer

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/Haleralex/walletcore/internal/pkg/retry"
)

// serialTxCoordinator runs each coordinated transaction under a single lock,
// the way row locks serialize the real legs, while the sagas as a whole
// still race against each other.
type serialTxCoordinator struct {
	mu   sync.Mutex
	rows []*entities.OutboxRow
}

func (c *serialTxCoordinator) Execute(ctx context.Context, opts ports.RunOptions, fn func(txCtx context.Context, buf *ports.EventBuffer) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := &ports.EventBuffer{}
	if err := fn(ctx, buf); err != nil {
		return err
	}
	c.rows = append(c.rows, buf.Rows()...)
	return nil
}

type discardCache struct{}

func (discardCache) Get(ctx context.Context, walletID string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}
func (discardCache) Set(ctx context.Context, walletID string, balance decimal.Decimal) error {
	return nil
}
func (discardCache) Invalidate(ctx context.Context, walletID string) error { return nil }

func TestExecute_OpposingTransfersPreserveTotal(t *testing.T) {
	coordinator := &serialTxCoordinator{}
	wallets := &memWalletRepo{wallets: map[string]*entities.Wallet{}}
	sagas := &memSagaRepo{sagas: map[uuid.UUID]*entities.TransferSaga{}}
	engine := NewEngine(
		coordinator, wallets, sagas, &memJournal{},
		&memIdempotency{records: map[string]*entities.IdempotencyRecord{}},
		discardCache{}, grantLocker{},
		EngineConfig{
			RetryPolicy: retry.Policy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxAttempts: 3},
		},
		slog.New(slog.DiscardHandler),
	)

	seed := func(id, balance string) {
		w, err := entities.NewWallet(id, usd)
		require.NoError(t, err)
		amount, err := valueobjects.NewMoney(balance, usd)
		require.NoError(t, err)
		require.NoError(t, w.Credit(amount))
		wallets.wallets[id] = w
	}
	seed("alice", "100.00")
	seed("bob", "50.00")

	type outcome struct {
		result *dtos.TransferResult
		err    error
	}
	run := func(from, to, amount string, out chan<- outcome, wg *sync.WaitGroup) {
		defer wg.Done()
		result, err := engine.Execute(context.Background(), dtos.TransferCommand{
			FromWalletID: from,
			ToWalletID:   to,
			Amount:       decimal.RequireFromString(amount),
		})
		out <- outcome{result: result, err: err}
	}

	outcomes := make(chan outcome, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go run("alice", "bob", "30.00", outcomes, &wg)
	go run("bob", "alice", "20.00", outcomes, &wg)
	wg.Wait()
	close(outcomes)

	for out := range outcomes {
		require.NoError(t, out.err)
		assert.Equal(t, string(entities.SagaStateCompleted), out.result.State)
	}

	alice := wallets.wallets["alice"].Balance().Amount()
	bob := wallets.wallets["bob"].Balance().Amount()
	assert.True(t, alice.Equal(decimal.RequireFromString("90.00")), "alice: %s", alice)
	assert.True(t, bob.Equal(decimal.RequireFromString("60.00")), "bob: %s", bob)
	// Money moved, none was minted or lost.
	assert.True(t, alice.Add(bob).Equal(decimal.RequireFromString("150.00")))
}
