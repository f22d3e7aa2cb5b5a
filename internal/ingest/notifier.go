package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fieldops/patrol-sync/pkg/metrics"
)

// ReportsExchange is the topic exchange accepted-report events are published
// to, routed as patrol.unit.<unitId>.report.accepted.
const ReportsExchange = "patrol.reports.topic"

// Notifier publishes accepted-report events to RabbitMQ with publisher
// confirms, so an event is either on disk at the broker or reported as an
// error.
type Notifier struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewNotifier dials the broker, declares the topic exchange and enables
// publisher confirms.
func NewNotifier(url string, l *slog.Logger) (*Notifier, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open RabbitMQ channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		ReportsExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("declare reports exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		conn:       c,
		channel:    ch,
		logger:     l,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	n.healthy.Store(true)
	metrics.BrokerHealth.Set(1)

	n.conn.NotifyClose(n.connClosed)
	n.channel.NotifyClose(n.chanClosed)

	go func() {
		select {
		case err := <-n.connClosed:
			n.healthy.Store(false)
			metrics.BrokerHealth.Set(0)
			l.Warn("RabbitMQ connection closed", "error", err)
		case err := <-n.chanClosed:
			n.healthy.Store(false)
			metrics.BrokerHealth.Set(0)
			l.Warn("RabbitMQ channel closed", "error", err)
		case <-n.ctx.Done():
			return
		}
	}()

	l.Info("Connected to RabbitMQ, confirms enabled", "exchange", ReportsExchange)
	return n, nil
}

// ReportAccepted publishes the event and blocks until the broker ACKs it.
func (n *Notifier) ReportAccepted(ctx context.Context, ev ReportEvent) error {
	if !n.IsHealthy() {
		return fmt.Errorf("broker connection is closed")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("serialize report event: %w", err)
	}

	routingKey := fmt.Sprintf("patrol.unit.%s.report.accepted", ev.UnitID)

	deferred, err := n.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		ReportsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			Headers: amqp.Table{
				"report_id": ev.ReportID,
			},
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish report event: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("RabbitMQ NACK received: event not persisted")
		}
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("publisher confirm timeout")
	}
}

// IsHealthy returns true while the connection and channel are both open.
func (n *Notifier) IsHealthy() bool {
	return n.healthy.Load()
}

// Close shuts down the broker resources exactly once.
func (n *Notifier) Close() error {
	n.closeOnce.Do(func() {
		n.logger.Info("Terminating RabbitMQ notifier")
		n.cancel()
		if n.channel != nil {
			n.channel.Close()
		}
		if n.conn != nil {
			n.conn.Close()
		}
	})
	return nil
}
