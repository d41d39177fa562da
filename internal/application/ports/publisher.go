package ports

import (
	"context"

	"github.com/Haleralex/walletcore/internal/domain/events"
)

// BusPublisher delivers messages to the event bus with publisher confirms.
// A returned error means the message may not have been delivered and the
// outbox row must stay unpublished.
type BusPublisher interface {
	Publish(ctx context.Context, eventType events.EventType, body []byte) error
}
