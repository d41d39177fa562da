package wallet

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/Haleralex/walletcore/internal/pkg/retry"
)

var usd = valueobjects.MustCurrency("USD")

// fakeCoordinator runs the closure inline and keeps the outbox rows each
// committed transaction staged.
type fakeCoordinator struct {
	calls    int
	lockKeys []string
	rows     []*entities.OutboxRow
}

func (c *fakeCoordinator) Execute(ctx context.Context, opts ports.RunOptions, fn func(txCtx context.Context, buf *ports.EventBuffer) error) error {
	c.calls++
	if opts.LockKey != "" {
		c.lockKeys = append(c.lockKeys, opts.LockKey)
	}
	buf := &ports.EventBuffer{}
	if err := fn(ctx, buf); err != nil {
		return err
	}
	c.rows = append(c.rows, buf.Rows()...)
	return nil
}

type mockWalletRepo struct {
	findByIDFn          func(ctx context.Context, id string) (*entities.Wallet, error)
	findByIDForUpdateFn func(ctx context.Context, id string) (*entities.Wallet, error)
	insertFn            func(ctx context.Context, w *entities.Wallet) error
	updateFn            func(ctx context.Context, w *entities.Wallet) error

	inserted []*entities.Wallet
	updated  []*entities.Wallet
}

func (m *mockWalletRepo) FindByID(ctx context.Context, id string) (*entities.Wallet, error) {
	if m.findByIDFn == nil {
		return nil, domainErrors.ErrWalletNotFound
	}
	return m.findByIDFn(ctx, id)
}

func (m *mockWalletRepo) FindByIDForUpdate(ctx context.Context, id string) (*entities.Wallet, error) {
	if m.findByIDForUpdateFn == nil {
		return nil, domainErrors.ErrWalletNotFound
	}
	return m.findByIDForUpdateFn(ctx, id)
}

func (m *mockWalletRepo) Insert(ctx context.Context, w *entities.Wallet) error {
	m.inserted = append(m.inserted, w)
	if m.insertFn != nil {
		return m.insertFn(ctx, w)
	}
	return nil
}

func (m *mockWalletRepo) Update(ctx context.Context, w *entities.Wallet) error {
	m.updated = append(m.updated, w)
	if m.updateFn != nil {
		return m.updateFn(ctx, w)
	}
	return nil
}

type mockJournal struct {
	insertErr error
	listFn    func(ctx context.Context, walletID string, limit, offset int) ([]*entities.WalletEvent, error)

	events []*entities.WalletEvent
}

func (m *mockJournal) Insert(ctx context.Context, event *entities.WalletEvent) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockJournal) ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]*entities.WalletEvent, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx, walletID, limit, offset)
}

type mockIdempotency struct {
	findErr   error
	insertErr error

	records map[string]*entities.IdempotencyRecord
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{records: map[string]*entities.IdempotencyRecord{}}
}

func (m *mockIdempotency) Find(ctx context.Context, requestID string) (*entities.IdempotencyRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.records[requestID], nil
}

func (m *mockIdempotency) Insert(ctx context.Context, record *entities.IdempotencyRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, exists := m.records[record.RequestID()]; exists {
		return domainErrors.ErrDuplicateRequest
	}
	m.records[record.RequestID()] = record
	return nil
}

func (m *mockIdempotency) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type mockBalanceCache struct {
	getFn func(ctx context.Context, walletID string) (decimal.Decimal, bool, error)

	sets        map[string]decimal.Decimal
	invalidated []string
	setErr      error
}

func newMockBalanceCache() *mockBalanceCache {
	return &mockBalanceCache{sets: map[string]decimal.Decimal{}}
}

func (m *mockBalanceCache) Get(ctx context.Context, walletID string) (decimal.Decimal, bool, error) {
	if m.getFn == nil {
		return decimal.Zero, false, nil
	}
	return m.getFn(ctx, walletID)
}

func (m *mockBalanceCache) Set(ctx context.Context, walletID string, balance decimal.Decimal) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.sets[walletID] = balance
	return nil
}

func (m *mockBalanceCache) Invalidate(ctx context.Context, walletID string) error {
	m.invalidated = append(m.invalidated, walletID)
	return nil
}

// testFixture bundles a fully wired engine with its mocks.
type testFixture struct {
	engine      *Engine
	coordinator *fakeCoordinator
	wallets     *mockWalletRepo
	journal     *mockJournal
	idempotency *mockIdempotency
	cache       *mockBalanceCache
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		coordinator: &fakeCoordinator{},
		wallets:     &mockWalletRepo{},
		journal:     &mockJournal{},
		idempotency: newMockIdempotency(),
		cache:       newMockBalanceCache(),
	}
	f.engine = NewEngine(
		f.coordinator, f.wallets, f.journal, f.idempotency, f.cache,
		EngineConfig{
			DefaultCurrency:  usd,
			HistoryPageLimit: 100,
			RetryPolicy: retry.Policy{
				InitialInterval: time.Millisecond,
				MaxInterval:     time.Millisecond,
				MaxAttempts:     3,
			},
		},
		slog.New(slog.DiscardHandler),
	)
	return f
}

// activeWallet builds an ACTIVE wallet with the given balance.
func activeWallet(t *testing.T, id, balance string) *entities.Wallet {
	t.Helper()
	w, err := entities.NewWallet(id, usd)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	if balance != "0" && balance != "" {
		amount, err := valueobjects.NewMoney(balance, usd)
		if err != nil {
			t.Fatalf("parse balance: %v", err)
		}
		if err := w.Credit(amount); err != nil {
			t.Fatalf("seed balance: %v", err)
		}
	}
	return w
}
