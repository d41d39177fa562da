package workers

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/events"
)

type mockOutboxRepo struct {
	rows         []*entities.OutboxRow
	findErr      error
	marked       [][]uuid.UUID
	markErr      error
	deletedUpTo  time.Time
	deleteErr    error
	deletedCount int64
}

func (m *mockOutboxRepo) Insert(context.Context, *entities.OutboxRow) error { return nil }

func (m *mockOutboxRepo) FindUnpublished(_ context.Context, limit int) ([]*entities.OutboxRow, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if len(m.rows) > limit {
		return m.rows[:limit], nil
	}
	return m.rows, nil
}

func (m *mockOutboxRepo) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, ids)
	return nil
}

func (m *mockOutboxRepo) DeletePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deletedUpTo = cutoff
	return m.deletedCount, nil
}

type mockPublisher struct {
	published []events.EventType
	failOn    map[events.EventType]error
}

func (m *mockPublisher) Publish(_ context.Context, eventType events.EventType, _ []byte) error {
	if err, ok := m.failOn[eventType]; ok {
		return err
	}
	m.published = append(m.published, eventType)
	return nil
}

type mockIdempotencyRepo struct {
	deletedUpTo  time.Time
	deletedCount int64
	deleteErr    error
}

func (m *mockIdempotencyRepo) Find(context.Context, string) (*entities.IdempotencyRecord, error) {
	return nil, nil
}

func (m *mockIdempotencyRepo) Insert(context.Context, *entities.IdempotencyRecord) error {
	return nil
}

func (m *mockIdempotencyRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deletedUpTo = cutoff
	return m.deletedCount, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func outboxRow(eventType events.EventType) *entities.OutboxRow {
	return entities.NewOutboxRow("wallet-1", eventType, []byte(`{}`))
}

func TestOutboxRelay_PublishesAndMarksBatch(t *testing.T) {
	repo := &mockOutboxRepo{rows: []*entities.OutboxRow{
		outboxRow(events.FundsDeposited),
		outboxRow(events.FundsWithdrawn),
	}}
	pub := &mockPublisher{}
	relay := NewOutboxRelay(repo, pub, time.Second, 100, discardLogger())

	relay.tick(context.Background())

	assert.Equal(t, []events.EventType{events.FundsDeposited, events.FundsWithdrawn}, pub.published)
	require.Len(t, repo.marked, 1)
	assert.Len(t, repo.marked[0], 2)
}

func TestOutboxRelay_FailedPublishLeavesRowUnmarked(t *testing.T) {
	good := outboxRow(events.FundsDeposited)
	bad := outboxRow(events.FundsWithdrawn)
	repo := &mockOutboxRepo{rows: []*entities.OutboxRow{bad, good}}
	pub := &mockPublisher{failOn: map[events.EventType]error{
		events.FundsWithdrawn: errors.New("broker down"),
	}}
	relay := NewOutboxRelay(repo, pub, time.Second, 100, discardLogger())

	relay.tick(context.Background())

	require.Len(t, repo.marked, 1)
	assert.Equal(t, []uuid.UUID{good.ID()}, repo.marked[0])
}

func TestOutboxRelay_EmptyBatchMarksNothing(t *testing.T) {
	repo := &mockOutboxRepo{}
	pub := &mockPublisher{}
	relay := NewOutboxRelay(repo, pub, time.Second, 100, discardLogger())

	relay.tick(context.Background())

	assert.Empty(t, pub.published)
	assert.Empty(t, repo.marked)
}

func TestOutboxRelay_RespectsBatchSize(t *testing.T) {
	repo := &mockOutboxRepo{}
	for range 5 {
		repo.rows = append(repo.rows, outboxRow(events.FundsDeposited))
	}
	pub := &mockPublisher{}
	relay := NewOutboxRelay(repo, pub, time.Second, 3, discardLogger())

	relay.tick(context.Background())

	assert.Len(t, pub.published, 3)
}

func TestOutboxRelay_BusyFlagSkipsOverlappingTick(t *testing.T) {
	repo := &mockOutboxRepo{rows: []*entities.OutboxRow{outboxRow(events.FundsDeposited)}}
	pub := &mockPublisher{}
	relay := NewOutboxRelay(repo, pub, time.Second, 100, discardLogger())

	relay.busy.Store(true)
	relay.tick(context.Background())
	assert.Empty(t, pub.published)

	relay.busy.Store(false)
	relay.tick(context.Background())
	assert.Len(t, pub.published, 1)
}

type mockRecoverer struct {
	cutoffs   []time.Time
	limits    []int
	recovered int
	err       error
}

func (m *mockRecoverer) RecoverStuck(_ context.Context, cutoff time.Time, limit int) (int, error) {
	m.cutoffs = append(m.cutoffs, cutoff)
	m.limits = append(m.limits, limit)
	return m.recovered, m.err
}

func TestSagaRecovery_SweepsWithConfiguredCutoff(t *testing.T) {
	rec := &mockRecoverer{recovered: 2}
	loop := NewSagaRecovery(rec, time.Second, time.Minute, 10, discardLogger())

	before := time.Now().UTC().Add(-time.Minute)
	loop.tick(context.Background())
	after := time.Now().UTC().Add(-time.Minute)

	require.Len(t, rec.cutoffs, 1)
	assert.False(t, rec.cutoffs[0].Before(before))
	assert.False(t, rec.cutoffs[0].After(after))
	assert.Equal(t, []int{10}, rec.limits)
}

func TestSagaRecovery_SweepErrorDoesNotPanic(t *testing.T) {
	rec := &mockRecoverer{err: errors.New("store down")}
	loop := NewSagaRecovery(rec, time.Second, time.Minute, 10, discardLogger())

	loop.tick(context.Background())

	assert.Len(t, rec.cutoffs, 1)
}

func TestSagaRecovery_BusyFlagSkipsOverlappingTick(t *testing.T) {
	rec := &mockRecoverer{}
	loop := NewSagaRecovery(rec, time.Second, time.Minute, 10, discardLogger())

	loop.busy.Store(true)
	loop.tick(context.Background())

	assert.Empty(t, rec.cutoffs)
}

func TestJanitor_DeletesWithConfiguredRetention(t *testing.T) {
	idem := &mockIdempotencyRepo{deletedCount: 3}
	outbox := &mockOutboxRepo{deletedCount: 7}
	j := NewJanitor(idem, outbox, time.Hour, 24*time.Hour, 168*time.Hour, discardLogger())

	now := time.Now().UTC()
	j.tick(context.Background())

	assert.WithinDuration(t, now.Add(-24*time.Hour), idem.deletedUpTo, time.Second)
	assert.WithinDuration(t, now.Add(-168*time.Hour), outbox.deletedUpTo, time.Second)
}

func TestJanitor_IdempotencyFailureStillCleansOutbox(t *testing.T) {
	idem := &mockIdempotencyRepo{deleteErr: errors.New("store down")}
	outbox := &mockOutboxRepo{deletedCount: 1}
	j := NewJanitor(idem, outbox, time.Hour, 24*time.Hour, 168*time.Hour, discardLogger())

	j.tick(context.Background())

	assert.False(t, outbox.deletedUpTo.IsZero())
}
