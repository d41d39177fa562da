// Package rabbitmq implements the event bus: publisher, consumer, and the
// broker topology (exchange, fraud queue, DLX, and the TTL wait queues that
// drive consumer-side retries).
package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection wraps an AMQP connection.
type Connection struct {
	conn *amqp.Connection
}

// Dial connects to the broker.
func Dial(url string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	return &Connection{conn: conn}, nil
}

// Channel opens a new channel. Channels are not safe for concurrent use;
// every publisher and consumer gets its own.
func (c *Connection) Channel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

// IsClosed reports whether the underlying connection is gone.
func (c *Connection) IsClosed() bool {
	return c.conn.IsClosed()
}

// NotifyClose registers a listener for connection loss.
func (c *Connection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return c.conn.NotifyClose(receiver)
}

// Close shuts the connection down.
func (c *Connection) Close() error {
	return c.conn.Close()
}
