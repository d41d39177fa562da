package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/events"
)

// Compile-time check
var _ ports.BusPublisher = (*Publisher)(nil)

// Publisher publishes bus messages with publisher confirms and persistent
// delivery. A publish that times out or is nacked leaves the outbox row
// unpublished, so nothing is lost.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// NewPublisher opens a confirming channel on conn.
func NewPublisher(conn *Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

// Publish sends body to the exchange under the event's routing key and
// waits for the broker's confirm.
func (p *Publisher) Publish(ctx context.Context, eventType events.EventType, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	confirmation, err := p.ch.PublishWithDeferredConfirmWithContext(
		ctx, p.exchange, eventType.RoutingKey(), false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish confirm for %s: %w", eventType, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked publish of %s", eventType)
	}
	return nil
}

// Close shuts the channel down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
