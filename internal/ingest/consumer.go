package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventHandler processes one accepted-report event. Returning an error
// requeues the delivery.
type EventHandler func(ctx context.Context, ev ReportEvent) error

// EventConsumer subscribes to accepted-report events, for downstream tooling
// (dashboards, ops tails) that wants reports as they land.
type EventConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	handler EventHandler
	logger  *slog.Logger
	queue   string
	binding string
}

// NewEventConsumer dials the broker. queue is this consumer's durable queue
// name; binding is the routing pattern, e.g. "patrol.unit.#" for everything.
func NewEventConsumer(url, queue, binding string, handler EventHandler, logger *slog.Logger) (*EventConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open RabbitMQ channel: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set QoS: %w", err)
	}

	return &EventConsumer{
		conn:    conn,
		channel: ch,
		handler: handler,
		logger:  logger,
		queue:   queue,
		binding: binding,
	}, nil
}

// Listen binds the queue to the reports exchange and consumes until ctx is
// cancelled. Acks are manual: an event is confirmed only after the handler
// succeeds.
func (c *EventConsumer) Listen(ctx context.Context) error {
	q, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := c.channel.QueueBind(q.Name, c.binding, ReportsExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := c.channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	c.logger.Info("Event consumer online", "queue", q.Name, "binding", c.binding)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			var ev ReportEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				c.logger.Error("Failed to unmarshal event, dropping", "error", err)
				d.Nack(false, false)
				continue
			}

			if err := c.handler(ctx, ev); err != nil {
				c.logger.Error("Event handling failed, requeueing", "report_id", ev.ReportID, "error", err)
				d.Nack(false, true)
				continue
			}

			if err := d.Ack(false); err != nil {
				c.logger.Error("Failed to Ack event", "report_id", ev.ReportID, "error", err)
			}
		}
	}
}

func (c *EventConsumer) Close() {
	c.logger.Info("Shutting down event consumer")
	c.channel.Close()
	c.conn.Close()
}
