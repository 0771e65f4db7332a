package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// publisher is the part of an AMQP channel the sink needs
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes events as JSON to a topic exchange.
// Routing keys look like "identityserver.token.success".
type AMQPSink struct {
	conn     *amqp.Connection
	channel  publisher
	exchange string
	logger   *zap.Logger
}

// NewAMQPSink connects to the broker and declares the exchange
func NewAMQPSink(url, exchange string, logger *zap.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	logger.Info("Publishing events to broker", zap.String("exchange", exchange))
	sink := newAMQPSink(ch, exchange, logger)
	sink.conn = conn
	return sink, nil
}

func newAMQPSink(ch publisher, exchange string, logger *zap.Logger) *AMQPSink {
	return &AMQPSink{channel: ch, exchange: exchange, logger: logger}
}

// Persist publishes the event
func (s *AMQPSink) Persist(ctx context.Context, event *domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = s.channel.PublishWithContext(ctx, s.exchange, RoutingKey(event), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.TimeStamp,
		Type:         event.Name,
		Body:         body,
	})
	if err != nil {
		s.logger.Error("Failed to publish event",
			zap.String("event", event.Name),
			zap.Error(err))
		return err
	}
	return nil
}

// Close releases the channel and the connection
func (s *AMQPSink) Close() error {
	err := s.channel.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// RoutingKey derives the topic routing key of an event
func RoutingKey(event *domain.Event) string {
	return strings.ToLower("identityserver." + event.Category + "." + event.EventType)
}
