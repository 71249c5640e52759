package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingRecordSynced = "tokko.record.synced"
	RoutingRunFinished  = "tokko.run.finished"
)

// AMQPPublisher sends events as persistent JSON messages to a topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *slog.Logger
}

func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp publisher: url is required")
	}
	if exchange == "" {
		return nil, fmt.Errorf("amqp publisher: exchange is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp publisher: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp publisher: declare exchange %q: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, log: logger}, nil
}

func (p *AMQPPublisher) PublishRecordSynced(ctx context.Context, evt RecordSynced) {
	p.publish(ctx, RoutingRecordSynced, "RecordSynced", evt)
}

func (p *AMQPPublisher) PublishRunFinished(ctx context.Context, evt RunFinished) {
	p.publish(ctx, RoutingRunFinished, "RunFinished", evt)
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey, eventType string, evt any) {
	msg, err := newMessage(eventType, evt, time.Now())
	if err != nil {
		p.log.Error("amqp: marshal event", "event", eventType, "err", err)
		return
	}
	if p.conn.IsClosed() {
		p.log.Warn("amqp: connection closed, event dropped", "event", eventType)
		return
	}
	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.ch.PublishWithContext(publishCtx, p.exchange, routingKey, false, false, msg); err != nil {
		p.log.Warn("amqp: publish failed", "event", eventType, "err", err)
	}
}

func newMessage(eventType string, evt any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    now,
		Headers: amqp.Table{
			"event-type":    eventType,
			"event-version": "1.0.0",
		},
	}, nil
}

func (p *AMQPPublisher) Close() error {
	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
