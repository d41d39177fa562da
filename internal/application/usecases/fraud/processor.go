// Package fraud implements the event-bus consumer side of fraud detection:
// message dedup plus the high-value and rapid-withdrawals rules.
package fraud

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Decision is the processor's verdict on one delivery. The transport maps it
// to ack / delayed redelivery / dead-letter.
type Decision int

const (
	// Accept acks the message: processed, or a known duplicate.
	Accept Decision = iota
	// Retry asks the transport for a delayed redelivery.
	Retry
	// Reject dead-letters the message immediately.
	Reject
)

const processedKeyPrefix = "processed_event:"

// Config carries the rule parameters.
type Config struct {
	// Threshold is the high-value rule's amount bound.
	Threshold decimal.Decimal
	// MaxWithdrawals is the rapid-withdrawals cardinality bound.
	MaxWithdrawals int64
	// TimeWindow is the rapid-withdrawals sliding window.
	TimeWindow time.Duration
	// ProcessedTTL bounds how long a message dedup marker lives.
	ProcessedTTL time.Duration
}

// Processor evaluates bus messages against the fraud rules. Delivery is
// at-least-once; the processed marker makes redelivery a no-op.
type Processor struct {
	alerts ports.FraudAlertRepository
	marker ports.ProcessedMarker
	window ports.WithdrawalWindow
	cfg    Config
	logger *slog.Logger
}

// NewProcessor wires a Processor, defaulting unset config fields.
func NewProcessor(
	alerts ports.FraudAlertRepository,
	marker ports.ProcessedMarker,
	window ports.WithdrawalWindow,
	cfg Config,
	logger *slog.Logger,
) *Processor {
	if cfg.Threshold.IsZero() {
		cfg.Threshold = decimal.NewFromInt(10000)
	}
	if cfg.MaxWithdrawals <= 0 {
		cfg.MaxWithdrawals = 3
	}
	if cfg.TimeWindow <= 0 {
		cfg.TimeWindow = 5 * time.Minute
	}
	if cfg.ProcessedTTL <= 0 {
		cfg.ProcessedTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{alerts: alerts, marker: marker, window: window, cfg: cfg, logger: logger}
}

// Process handles one message body and returns the delivery verdict.
func (p *Processor) Process(ctx context.Context, body []byte) Decision {
	msg, err := events.UnmarshalBusMessage(body)
	if err != nil {
		p.logger.WarnContext(ctx, "unparseable bus message", "error", err)
		metrics.FraudMessagesTotal.WithLabelValues("unparseable").Inc()
		return Reject
	}

	log := p.logger.With("wallet_id", msg.WalletID, "event_type", string(msg.EventType))

	key := processedKeyPrefix + msg.IdempotencyKey()
	fresh, err := p.marker.SetIfAbsent(ctx, key, p.cfg.ProcessedTTL)
	if err != nil {
		log.ErrorContext(ctx, "processed marker unavailable", "error", err)
		metrics.FraudMessagesTotal.WithLabelValues("retried").Inc()
		return Retry
	}
	if !fresh {
		log.DebugContext(ctx, "duplicate message, skipping")
		metrics.FraudMessagesTotal.WithLabelValues("duplicate").Inc()
		return Accept
	}

	if msg.EventType == events.FundsWithdrawn {
		if err := p.evaluateWithdrawal(ctx, msg); err != nil {
			log.ErrorContext(ctx, "rule evaluation failed, scheduling retry", "error", err)
			// Re-arm dedup so the redelivery is not swallowed as a duplicate.
			if derr := p.marker.Delete(ctx, key); derr != nil {
				log.ErrorContext(ctx, "failed to clear processed marker", "error", derr)
			}
			metrics.FraudMessagesTotal.WithLabelValues("retried").Inc()
			return Retry
		}
	}

	metrics.FraudMessagesTotal.WithLabelValues("processed").Inc()
	return Accept
}

// evaluateWithdrawal runs both withdrawal rules. An error from either aborts
// the message for retry; alerts already written stay written, the insert is
// append-only and a duplicate alert is acceptable.
func (p *Processor) evaluateWithdrawal(ctx context.Context, msg events.BusMessage) error {
	if err := p.checkHighValue(ctx, msg); err != nil {
		return err
	}
	return p.checkRapidWithdrawals(ctx, msg)
}

func (p *Processor) checkHighValue(ctx context.Context, msg events.BusMessage) error {
	if msg.Amount == nil || !msg.Amount.GreaterThan(p.cfg.Threshold) {
		return nil
	}
	alert := entities.NewFraudAlert(msg.WalletID, entities.AlertHighValueTransaction, map[string]any{
		"amount":    msg.Amount.String(),
		"threshold": p.cfg.Threshold.String(),
	})
	if err := p.alerts.Insert(ctx, alert); err != nil {
		return err
	}
	metrics.FraudAlertsTotal.WithLabelValues(string(entities.AlertHighValueTransaction)).Inc()
	p.logger.WarnContext(ctx, "high-value transaction alert",
		"wallet_id", msg.WalletID, "amount", msg.Amount.String())
	return nil
}

func (p *Processor) checkRapidWithdrawals(ctx context.Context, msg events.BusMessage) error {
	count, err := p.window.Record(ctx, msg.WalletID, msg.Timestamp, p.cfg.TimeWindow)
	if err != nil {
		return err
	}
	if count <= p.cfg.MaxWithdrawals {
		return nil
	}
	alert := entities.NewFraudAlert(msg.WalletID, entities.AlertRapidWithdrawals, map[string]any{
		"withdrawalCount": count,
		"timeWindow":      p.cfg.TimeWindow.String(),
	})
	if err := p.alerts.Insert(ctx, alert); err != nil {
		return err
	}
	metrics.FraudAlertsTotal.WithLabelValues(string(entities.AlertRapidWithdrawals)).Inc()
	p.logger.WarnContext(ctx, "rapid withdrawals alert",
		"wallet_id", msg.WalletID, "withdrawal_count", count)
	return nil
}
