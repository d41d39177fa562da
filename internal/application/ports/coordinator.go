package ports

import (
	"context"
	"time"

	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/events"
)

// IsolationLevel selects the store transaction isolation.
type IsolationLevel int

const (
	IsolationDefault IsolationLevel = iota // READ COMMITTED
	IsolationSerializable
)

// RunOptions tune a coordinated transaction.
type RunOptions struct {
	// LockKey, when set, acquires a distributed lock via set-if-absent
	// before the transaction starts. Failure to acquire fails the whole
	// call with errors.ErrConcurrentRequest.
	LockKey string
	LockTTL time.Duration

	Isolation IsolationLevel
}

// EventBuffer collects bus messages during a coordinated transaction. The
// Coordinator persists them as outbox rows atomically with the business
// writes, then attempts a best-effort post-commit publish.
type EventBuffer struct {
	rows []*entities.OutboxRow
}

// Publish stages a message. aggregateID is the wallet or saga the message
// is about.
func (b *EventBuffer) Publish(aggregateID string, msg events.BusMessage) error {
	payload, err := msg.Marshal()
	if err != nil {
		return err
	}
	b.rows = append(b.rows, entities.NewOutboxRow(aggregateID, msg.EventType, payload))
	return nil
}

// Rows returns the staged outbox rows.
func (b *EventBuffer) Rows() []*entities.OutboxRow {
	return b.rows
}

// Coordinator runs business logic in a single store transaction together
// with the staged outbox rows.
//
// Guarantee: either the business writes and the outbox rows all persist, or
// none do. Post-commit publish is fire-and-forget; the relay delivers
// anything the publish attempt missed.
type Coordinator interface {
	Execute(ctx context.Context, opts RunOptions, fn func(txCtx context.Context, buf *EventBuffer) error) error
}
