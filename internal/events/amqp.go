package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpPublisher is the subset of *amqp.Channel the sink uses.
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink bridges hub events to a RabbitMQ topic exchange so that other
// instances and external consumers can follow the same groups. Each group
// becomes one message with the group's routing key.
type AMQPSink struct {
	mu       sync.Mutex
	channel  amqpPublisher
	conn     *amqp.Connection
	exchange string
}

// DialAMQP connects to the broker and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, err
	}

	log.Printf("[AMQP] connected, publishing to exchange %s", exchange)
	return &AMQPSink{channel: channel, conn: conn, exchange: exchange}, nil
}

// NewAMQPSink wraps an already configured channel.
func NewAMQPSink(channel amqpPublisher, exchange string) *AMQPSink {
	return &AMQPSink{channel: channel, exchange: exchange}
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Deliver(ctx context.Context, ev Event, groups []Group) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, g := range groups {
		err := s.channel.PublishWithContext(ctx,
			s.exchange,    // exchange
			RoutingKey(g), // routing key
			false,         // mandatory
			false,         // immediate
			amqp.Publishing{
				ContentType: "application/json",
				Type:        string(ev.Type),
				MessageId:   fmt.Sprintf("%d-%d", ev.Order.ID, ev.Order.Version),
				Body:        body,
			})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("publish %s: %w", RoutingKey(g), err)
		}
	}
	return firstErr
}

// Close releases the broker connection when the sink owns one.
func (s *AMQPSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
