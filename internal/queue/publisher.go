package queue

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends JSON events to durable RabbitMQ queues. It dials per
// publish; assistant side effects are infrequent enough that a pooled
// connection is not needed.
type Publisher struct {
	url    string
	logger *slog.Logger
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{url: url, logger: logger}
}

// Publish marshals event and sends it to queue through the default exchange
// as a persistent message. Errors are logged and returned so the caller can
// decide whether the request fails.
func (p *Publisher) Publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("rabbitmq: marshal event failed", "queue", queue, "err", err)
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Error("rabbitmq: dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Error("rabbitmq: channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.logger.Error("rabbitmq: queue declare failed", "queue", queue, "err", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.logger.Error("rabbitmq: publish failed", "queue", queue, "err", err)
		return err
	}
	return nil
}
