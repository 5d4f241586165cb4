package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultExchange = "wallet_events"

type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body any) error
	Close()
}

// AMQPProducer publishes JSON messages to durable topic exchanges.
type AMQPProducer struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// FallbackPublisher is used when the broker is not configured or unreachable at startup.
type FallbackPublisher struct{}

func (p *FallbackPublisher) Publish(_ context.Context, exchange, routingKey string, _ any) error {
	zap.L().Debug("publish skipped", zap.String("exchange", exchange), zap.String("routing_key", routingKey))
	return nil
}

func (p *FallbackPublisher) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func NewAMQPProducer(amqpURL string) (*AMQPProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPProducer{conn: conn, channel: ch}, nil
}

// NewPublisher dials the broker, or returns a FallbackPublisher when the URL
// is empty or the dial fails.
func NewPublisher(amqpURL string) Publisher {
	if amqpURL == "" {
		zap.L().Info("AMQP_URL not set, ledger events will not be published")
		return &FallbackPublisher{}
	}
	p, err := NewAMQPProducer(amqpURL)
	if err != nil {
		zap.L().Warn("failed to connect to RabbitMQ, using fallback publisher", zap.Error(err))
		return &FallbackPublisher{}
	}
	return p
}

func (p *AMQPProducer) declare(exchange string) error {
	return p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}

func (p *AMQPProducer) reopen(exchange string) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	p.channel = ch
	return p.declare(exchange)
}

func (p *AMQPProducer) Publish(ctx context.Context, exchange, routingKey string, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.declare(exchange); err != nil {
		zap.L().Warn("exchange declare failed, reopening channel", zap.String("exchange", exchange), zap.Error(err))
		if err := p.reopen(exchange); err != nil {
			return err
		}
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         jsonBody,
	}
	err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	zap.L().Warn("publish failed, reopening channel",
		zap.String("exchange", exchange), zap.String("routing_key", routingKey), zap.Error(err))
	if rerr := p.reopen(exchange); rerr != nil {
		return errors.Join(err, rerr)
	}
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

func (p *AMQPProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// AMQPSink forwards every ledger event to the events exchange.
type AMQPSink struct {
	publisher Publisher
	exchange  string
}

func NewAMQPSink(publisher Publisher, exchange string) *AMQPSink {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPSink{publisher: publisher, exchange: exchange}
}

func (s *AMQPSink) Name() string {
	return "amqp"
}

func (s *AMQPSink) Send(ctx context.Context, event Event) error {
	return s.publisher.Publish(ctx, s.exchange, event.RoutingKey(), event)
}
