package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Outcome tells the consumer what to do with a delivery.
type Outcome int

const (
	// Ack drops the message: processed, or a known duplicate.
	Ack Outcome = iota
	// Retry schedules a delayed redelivery through the wait queues, or the
	// DLQ once the retry budget is spent.
	Retry
	// Dead sends the message to the DLQ immediately.
	Dead
)

// Handler processes one message body and decides its fate.
type Handler func(ctx context.Context, body []byte) Outcome

const retryCountHeader = "x-retry-count"

// Consumer drains the fraud queue with manual acks and prefetch-based load
// balancing across worker replicas.
type Consumer struct {
	conn     *Connection
	topology Topology
	prefetch int
	logger   *slog.Logger
}

// NewConsumer wires a Consumer.
func NewConsumer(conn *Connection, topology Topology, prefetch int, logger *slog.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{conn: conn, topology: topology, prefetch: prefetch, logger: logger}
}

// Run declares the topology and consumes until ctx is cancelled or the
// channel dies. The caller owns reconnecting.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := c.topology.Declare(ch); err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(c.topology.FraudQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", c.topology.FraudQueue, err)
	}

	c.logger.InfoContext(ctx, "consuming",
		"queue", c.topology.FraudQueue, "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.dispatch(ctx, ch, d, handler)
		}
	}
}

// dispatch applies the handler's verdict to one delivery.
func (c *Consumer) dispatch(ctx context.Context, ch *amqp.Channel, d amqp.Delivery, handler Handler) {
	switch handler(ctx, d.Body) {
	case Ack:
		if err := d.Ack(false); err != nil {
			c.logger.ErrorContext(ctx, "ack failed", "error", err)
		}
	case Dead:
		if err := d.Nack(false, false); err != nil {
			c.logger.ErrorContext(ctx, "nack failed", "error", err)
		}
	case Retry:
		c.scheduleRetry(ctx, ch, d)
	}
}

// scheduleRetry republishes the payload to the next wait queue with an
// incremented retry count, then acks the original. A spent retry budget
// nacks to the DLQ instead.
func (c *Consumer) scheduleRetry(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	count := retryCount(d)
	if count >= MaxRetries() {
		c.logger.WarnContext(ctx, "retry budget exhausted, dead-lettering",
			"routing_key", d.RoutingKey, "retries", count)
		metrics.FraudMessagesTotal.WithLabelValues("dead_lettered").Inc()
		if err := d.Nack(false, false); err != nil {
			c.logger.ErrorContext(ctx, "nack failed", "error", err)
		}
		return
	}

	err := ch.PublishWithContext(ctx, "", c.topology.WaitQueue(count), false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{retryCountHeader: int32(count + 1)},
			Body:         d.Body,
		},
	)
	if err != nil {
		// Could not schedule the delay; requeue so the message is not lost.
		c.logger.ErrorContext(ctx, "failed to schedule retry, requeueing", "error", err)
		if nerr := d.Nack(false, true); nerr != nil {
			c.logger.ErrorContext(ctx, "nack failed", "error", nerr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.ErrorContext(ctx, "ack failed", "error", err)
	}
}

// retryCount reads the x-retry-count header, tolerating the integer types
// different AMQP clients encode it as.
func retryCount(d amqp.Delivery) int {
	v, ok := d.Headers[retryCountHeader]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}
