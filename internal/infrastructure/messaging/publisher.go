package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/garyjia/ohsms/internal/application/dispatcher"
	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/event"
)

// Config holds the broker settings
type Config struct {
	URL            string
	Queue          string
	PublishTimeout time.Duration
}

// channel is the subset of *amqp.Channel used by the publisher
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher forwards domain events to a durable RabbitMQ queue
type AMQPPublisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	ch      channel
	queue   string
	timeout time.Duration
	logger  *zap.Logger
}

// Dial connects to the broker and declares the queue
func Dial(cfg Config, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := newPublisher(ch, cfg, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, cfg Config, logger *zap.Logger) (*AMQPPublisher, error) {
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AMQPPublisher{
		ch:      ch,
		queue:   cfg.Queue,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Publish sends the event as a persistent JSON message
func (p *AMQPPublisher) Publish(ctx context.Context, evt *event.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     evt.ID,
		CorrelationId: evt.CorrelationID,
		Type:          string(evt.Type),
		Timestamp:     evt.Timestamp,
		Body:          body,
	})
	if err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", string(evt.Type)),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Handler adapts a publisher to a dispatcher handler
func Handler(publisher port.EventPublisher) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		return publisher.Publish(ctx, evt)
	}
}

var _ port.EventPublisher = (*AMQPPublisher)(nil)
