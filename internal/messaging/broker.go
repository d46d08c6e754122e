package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dchat/internal/domain"
	"dchat/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
)

const (
	// exchangeName is the shared fanout exchange every instance publishes to.
	exchangeName = "chat"
	// routingKey is empty: fanout ignores routing keys.
	routingKey = ""
)

// Broker is the bridge to the shared fanout exchange. Every running
// instance binds its own exclusive auto-deleted queue, so each instance
// (including the publisher itself) receives every published message once.
// That single path covers both local and remote delivery.
//
// The connection is established once at startup and held for the process
// lifetime. Losing it is fatal to real-time fan-out; supervision restarts
// the process, there is no reconnect logic here.
type Broker struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

// Connect dials the broker with bounded retry and declares the fanout
// topology. It must succeed before the process starts serving.
func Connect(ctx context.Context, url string) (*Broker, error) {
	var conn *amqp.Connection

	backoff := retry.WithMaxRetries(10, retry.WithCappedDuration(5*time.Second, retry.NewExponential(500*time.Millisecond)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, dialErr := amqp.Dial(url)
		if dialErr != nil {
			slog.Warn("broker dial failed, retrying", slog.String("error", dialErr.Error()))
			return retry.RetryableError(dialErr)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	b := &Broker{conn: conn, channel: ch}
	if err := b.setup(); err != nil {
		b.Close()
		return nil, err
	}

	return b, nil
}

// setup declares the shared exchange and this instance's receive queue.
func (b *Broker) setup() error {
	if err := b.channel.ExchangeDeclare(
		exchangeName, // name
		"fanout",     // type
		false,        // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return fmt.Errorf("failed to declare chat exchange: %w", err)
	}

	queue, err := b.channel.QueueDeclare(
		"",    // auto-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare instance queue: %w", err)
	}

	if err := b.channel.QueueBind(
		queue.Name,
		routingKey,
		exchangeName,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind instance queue: %w", err)
	}

	b.queueName = queue.Name

	// Publishes are mandatory; with our own queue bound this cannot return,
	// so a return indicates broken topology and is worth a log line.
	returns := b.channel.NotifyReturn(make(chan amqp.Return, 16))
	go func() {
		for ret := range returns {
			observability.BrokerEnvelopesDropped.WithLabelValues("returned").Inc()
			slog.Error("broker returned undeliverable publish",
				slog.String("exchange", ret.Exchange),
				slog.String("reply", ret.ReplyText))
		}
	}()

	slog.Info("broker topology ready",
		slog.String("exchange", exchangeName),
		slog.String("queue", queue.Name))
	return nil
}

// Publish sends the view to the fanout exchange as a transient, mandatory
// publish. An envelope that fails to encode is logged and dropped: the
// message is already durably stored, it just will not reach live listeners.
func (b *Broker) Publish(ctx context.Context, view *domain.MessageView) error {
	body, err := EncodeEnvelope(view)
	if err != nil {
		observability.BrokerEnvelopesDropped.WithLabelValues("encode").Inc()
		slog.Error("error serializing message",
			slog.String("error", err.Error()),
			slog.String("room", view.Room),
			slog.Int64("message_id", view.ID))
		return nil
	}

	err = b.channel.PublishWithContext(
		ctx,
		exchangeName,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/msgpack",
			Body:         body,
			DeliveryMode: amqp.Transient,
		},
	)
	if err != nil {
		observability.BrokerPublishes.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish message: %w", err)
	}

	observability.BrokerPublishes.WithLabelValues("ok").Inc()
	return nil
}

// Consume starts delivering envelopes from this instance's queue.
func (b *Broker) Consume() (<-chan amqp.Delivery, error) {
	msgs, err := b.channel.Consume(
		b.queueName,
		"",    // consumer
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("consuming chat envelopes", slog.String("queue", b.queueName))
	return msgs, nil
}

// QueueName returns this instance's receive queue name.
func (b *Broker) QueueName() string {
	return b.queueName
}

func (b *Broker) IsClosed() bool {
	return b.conn == nil || b.conn.IsClosed()
}

func (b *Broker) Close() error {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
