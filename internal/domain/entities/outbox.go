package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/domain/events"
)

// OutboxRow stages an event-bus message in the store. It is inserted in the
// same transaction as the business write and drained asynchronously by the
// relay, which gives at-least-once delivery without dual writes.
type OutboxRow struct {
	id          uuid.UUID
	aggregateID string
	eventType   events.EventType
	payload     []byte // serialized bus message
	published   bool
	createdAt   time.Time
}

// NewOutboxRow stages a message for publication.
func NewOutboxRow(aggregateID string, eventType events.EventType, payload []byte) *OutboxRow {
	return &OutboxRow{
		id:          uuid.New(),
		aggregateID: aggregateID,
		eventType:   eventType,
		payload:     payload,
		published:   false,
		createdAt:   time.Now().UTC(),
	}
}

// ReconstructOutboxRow hydrates a row from stored data.
func ReconstructOutboxRow(
	id uuid.UUID,
	aggregateID string,
	eventType events.EventType,
	payload []byte,
	published bool,
	createdAt time.Time,
) *OutboxRow {
	return &OutboxRow{
		id:          id,
		aggregateID: aggregateID,
		eventType:   eventType,
		payload:     payload,
		published:   published,
		createdAt:   createdAt,
	}
}

func (r *OutboxRow) ID() uuid.UUID               { return r.id }
func (r *OutboxRow) AggregateID() string         { return r.aggregateID }
func (r *OutboxRow) EventType() events.EventType { return r.eventType }
func (r *OutboxRow) Payload() []byte             { return r.payload }
func (r *OutboxRow) Published() bool             { return r.published }
func (r *OutboxRow) CreatedAt() time.Time        { return r.createdAt }
