package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// AMQPConfig describes where events are published on a RabbitMQ broker.
type AMQPConfig struct {
	URL        string
	Exchange   string // empty publishes through the default exchange
	RoutingKey string // queue name when Exchange is empty
	Durable    bool
}

// AMQPSink publishes each event as a persistent JSON message.
type AMQPSink struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

// NewAMQPSink dials the broker and declares the target queue when publishing through
// the default exchange.
func NewAMQPSink(cfg AMQPConfig) (*AMQPSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("AMQP URL must not be empty")
	}
	routingKey := cfg.RoutingKey
	if routingKey == "" {
		routingKey = "proof-events"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if cfg.Exchange == "" {
		if _, err := ch.QueueDeclare(routingKey, cfg.Durable, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", routingKey, err)
		}
	}

	return &AMQPSink{conn: conn, ch: ch, exchange: cfg.Exchange, routingKey: routingKey}, nil
}

func (s *AMQPSink) Publish(ctx context.Context, record interfaces.EventRecord) error {
	body, err := record.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return s.ch.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         record.Name,
		Body:         body,
	})
}

func (s *AMQPSink) Name() string { return "amqp-" + s.routingKey }

func (s *AMQPSink) Close() error {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
