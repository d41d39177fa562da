package rabbitmq

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Haleralex/walletcore/internal/domain/events"
)

// retryDelays are the wait-queue TTLs, indexed by retry attempt.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Topology names every broker object off the exchange and queue configured
// for the deployment.
type Topology struct {
	Exchange   string
	FraudQueue string
}

// DLX returns the dead-letter exchange name.
func (t Topology) DLX() string { return t.FraudQueue + ".dlx" }

// DLQ returns the dead-letter queue name.
func (t Topology) DLQ() string { return t.FraudQueue + ".dlq" }

// WaitQueue returns the wait queue for the given retry attempt.
func (t Topology) WaitQueue(attempt int) string {
	return fmt.Sprintf("%s.wait.%d", t.FraudQueue, retryDelays[attempt].Milliseconds())
}

// fraudBindings are the routing keys the fraud queue consumes.
func fraudBindings() []string {
	return []string{
		events.FundsWithdrawn.RoutingKey(),
		events.TransferCompleted.RoutingKey(),
	}
}

// Declare installs the full topology. Declarations are idempotent; every
// process declares on startup and the first one wins.
//
// Message flow: a business failure is republished to a wait queue, whose
// per-queue TTL expires the message straight back into the fraud queue via
// the default exchange. Expired messages carry the wait queue's name as
// routing key, so routing them through the topic exchange would lose them;
// the default-exchange hop sidesteps that. After the last retry the message
// is nacked into the DLX.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", t.Exchange, err)
	}
	if err := ch.ExchangeDeclare(t.DLX(), "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLX %s: %w", t.DLX(), err)
	}

	if _, err := ch.QueueDeclare(t.DLQ(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ %s: %w", t.DLQ(), err)
	}
	if err := ch.QueueBind(t.DLQ(), "#", t.DLX(), false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	if _, err := ch.QueueDeclare(t.FraudQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": t.DLX(),
	}); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", t.FraudQueue, err)
	}
	for _, key := range fraudBindings() {
		if err := ch.QueueBind(t.FraudQueue, key, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", t.FraudQueue, key, err)
		}
	}

	for attempt := range retryDelays {
		name := t.WaitQueue(attempt)
		if _, err := ch.QueueDeclare(name, true, false, false, false, amqp.Table{
			"x-message-ttl":             retryDelays[attempt].Milliseconds(),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": t.FraudQueue,
		}); err != nil {
			return fmt.Errorf("failed to declare wait queue %s: %w", name, err)
		}
	}

	return nil
}

// MaxRetries is how many delayed redeliveries a message gets before the DLQ.
func MaxRetries() int { return len(retryDelays) }
