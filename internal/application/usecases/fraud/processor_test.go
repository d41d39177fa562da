package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/events"
)

type mockAlertRepo struct {
	inserted  []*entities.FraudAlert
	insertErr error
}

func (m *mockAlertRepo) Insert(_ context.Context, alert *entities.FraudAlert) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, alert)
	return nil
}

func (m *mockAlertRepo) ListByWallet(context.Context, string, int) ([]*entities.FraudAlert, error) {
	return nil, nil
}

type mockMarker struct {
	seen    map[string]bool
	setErr  error
	deleted []string
}

func newMockMarker() *mockMarker {
	return &mockMarker{seen: map[string]bool{}}
}

func (m *mockMarker) SetIfAbsent(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *mockMarker) Delete(_ context.Context, key string) error {
	delete(m.seen, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type mockWindow struct {
	count     int64
	recordErr error
	recorded  []string
}

func (m *mockWindow) Record(_ context.Context, walletID string, _ time.Time, _ time.Duration) (int64, error) {
	if m.recordErr != nil {
		return 0, m.recordErr
	}
	m.recorded = append(m.recorded, walletID)
	return m.count, nil
}

func newProcessor(alerts *mockAlertRepo, marker *mockMarker, window *mockWindow) *Processor {
	return NewProcessor(alerts, marker, window, Config{
		Threshold:      decimal.NewFromInt(10000),
		MaxWithdrawals: 3,
		TimeWindow:     5 * time.Minute,
		ProcessedTTL:   24 * time.Hour,
	}, slog.New(slog.DiscardHandler))
}

func withdrawalBody(t *testing.T, walletID, amount string) []byte {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	body, err := json.Marshal(events.BusMessage{
		EventType: events.FundsWithdrawn,
		WalletID:  walletID,
		Amount:    &amt,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	return body
}

func TestProcess_UnparseableGoesToDeadLetter(t *testing.T) {
	alerts := &mockAlertRepo{}
	marker := newMockMarker()
	window := &mockWindow{count: 1}
	p := newProcessor(alerts, marker, window)

	decision := p.Process(context.Background(), []byte("{not json"))

	assert.Equal(t, Reject, decision)
	assert.Empty(t, marker.seen)
	assert.Empty(t, alerts.inserted)
}

func TestProcess_DuplicateIsAckedWithoutRules(t *testing.T) {
	alerts := &mockAlertRepo{}
	marker := newMockMarker()
	window := &mockWindow{count: 1}
	p := newProcessor(alerts, marker, window)
	body := withdrawalBody(t, "wallet-1", "15000.00")

	require.Equal(t, Accept, p.Process(context.Background(), body))
	require.Len(t, alerts.inserted, 1)

	decision := p.Process(context.Background(), body)

	assert.Equal(t, Accept, decision)
	assert.Len(t, alerts.inserted, 1, "rules must not run twice for the same message")
	assert.Len(t, window.recorded, 1)
}

func TestProcess_HighValueWithdrawalRaisesAlert(t *testing.T) {
	alerts := &mockAlertRepo{}
	marker := newMockMarker()
	window := &mockWindow{count: 1}
	p := newProcessor(alerts, marker, window)

	decision := p.Process(context.Background(), withdrawalBody(t, "wallet-1", "10000.01"))

	assert.Equal(t, Accept, decision)
	require.Len(t, alerts.inserted, 1)
	alert := alerts.inserted[0]
	assert.Equal(t, entities.AlertHighValueTransaction, alert.AlertType())
	assert.Equal(t, "wallet-1", alert.WalletID())
	assert.Equal(t, "10000.01", alert.Details()["amount"])
	assert.Equal(t, "10000", alert.Details()["threshold"])
}

func TestProcess_AmountAtThresholdDoesNotAlert(t *testing.T) {
	alerts := &mockAlertRepo{}
	marker := newMockMarker()
	window := &mockWindow{count: 1}
	p := newProcessor(alerts, marker, window)

	decision := p.Process(context.Background(), withdrawalBody(t, "wallet-1", "10000.00"))

	assert.Equal(t, Accept, decision)
	assert.Empty(t, alerts.inserted)
}

func TestProcess_RapidWithdrawalsRaisesAlert(t *testing.T) {
	alerts := &mockAlertRepo{}
	marker := newMockMarker()
	window := &mockWindow{count: 4}
	p := newProcessor(alerts, marker, window)

	decision := p.Process(context.Background(), withdrawalBody(t, "wallet-1", "50.00"))

	assert.Equal(t, Accept, decision)
	require.Len(t, alerts.inserted, 1)
	alert := alerts.inserted[0]
	assert.Equal(t, entities.AlertRapidWithdrawals, alert.AlertType())
	assert.Equal(t, int64(4), alert.Details()["withdrawalCount"])
	assert.Equal(t, "5m0s", alert.Details()["timeWindow"])
}

func TestProcess_WindowAtLimitDoesNotAlert(t *testing.T) {
	alerts := &mockAlertRepo{}
	marker := newMockMarker()
	window := &mockWindow{count: 3}
	p := newProcessor(alerts, marker, window)

	decision := p.Process(context.Background(), withdrawalBody(t, "wallet-1", "50.00"))

	assert.Equal(t, Accept, decision)
	assert.Empty(t, alerts.inserted)
}

func TestProcess_TransferCompletedIsDedupedButNotEvaluated(t *testing.T) {
	alerts := &mockAlertRepo{}
	marker := newMockMarker()
	window := &mockWindow{count: 10}
	p := newProcessor(alerts, marker, window)

	amt := decimal.NewFromInt(99999)
	body, err := json.Marshal(events.BusMessage{
		EventType: events.TransferCompleted,
		WalletID:  "wallet-1",
		Amount:    &amt,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	decision := p.Process(context.Background(), body)

	assert.Equal(t, Accept, decision)
	assert.Len(t, marker.seen, 1)
	assert.Empty(t, alerts.inserted)
	assert.Empty(t, window.recorded)
}

func TestProcess_MarkerFailureRequestsRetry(t *testing.T) {
	alerts := &mockAlertRepo{}
	marker := newMockMarker()
	marker.setErr = errors.New("cache down")
	window := &mockWindow{count: 1}
	p := newProcessor(alerts, marker, window)

	decision := p.Process(context.Background(), withdrawalBody(t, "wallet-1", "50.00"))

	assert.Equal(t, Retry, decision)
	assert.Empty(t, alerts.inserted)
}

func TestProcess_RuleFailureClearsMarkerAndRetries(t *testing.T) {
	alerts := &mockAlertRepo{insertErr: errors.New("store down")}
	marker := newMockMarker()
	window := &mockWindow{count: 1}
	p := newProcessor(alerts, marker, window)
	body := withdrawalBody(t, "wallet-1", "20000.00")

	decision := p.Process(context.Background(), body)

	assert.Equal(t, Retry, decision)
	require.Len(t, marker.deleted, 1, "marker must be cleared so the redelivery is evaluated")
	assert.Empty(t, marker.seen)

	alerts.insertErr = nil
	decision = p.Process(context.Background(), body)

	assert.Equal(t, Accept, decision)
	assert.Len(t, alerts.inserted, 1)
}
