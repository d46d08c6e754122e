package messaging

import (
	"context"
	"log/slog"

	"dchat/internal/domain"
	"dchat/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Enqueuer is the delivery queue the consumer feeds. Enqueue blocks when
// the queue is full, pushing backpressure to the broker client rather than
// dropping messages.
type Enqueuer interface {
	Enqueue(ctx context.Context, view *domain.MessageView) error
}

// Consumer drains this instance's broker queue into the delivery queue.
type Consumer struct {
	broker *Broker
	queue  Enqueuer
}

// NewConsumer creates a consumer bridging the broker to the delivery queue.
func NewConsumer(broker *Broker, queue Enqueuer) *Consumer {
	return &Consumer{broker: broker, queue: queue}
}

// Start registers the consumer and runs the receive loop until ctx is
// cancelled or the broker channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.broker.Consume()
	if err != nil {
		return err
	}

	go c.run(ctx, msgs)
	return nil
}

func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping broker consumer")
			return
		case msg, ok := <-msgs:
			if !ok {
				slog.Warn("broker delivery channel closed; live fan-out stopped")
				return
			}

			c.handle(ctx, msg.Body)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) {
	observability.BrokerEnvelopesReceived.Inc()

	view, err := DecodeEnvelope(body)
	if err != nil {
		observability.BrokerEnvelopesDropped.WithLabelValues("decode").Inc()
		slog.Error("error parsing envelope",
			slog.String("error", err.Error()),
			slog.Int("body_size", len(body)))
		return
	}

	if err := c.queue.Enqueue(ctx, view); err != nil {
		// Only a cancelled context gets here; shutdown is already underway.
		slog.Warn("dropping envelope during shutdown",
			slog.String("room", view.Room),
			slog.Int64("message_id", view.ID))
	}
}
