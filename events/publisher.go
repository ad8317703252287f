// Package events publishes finalized match results to RabbitMQ for the leaderboard service.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Dosada05/trivia-duel/models"
)

const DefaultQueue = "match.finished"

var ErrPublishFailed = errors.New("failed to publish event")

// Channel - подмножество *amqp.Channel, которое нужно издателю.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel plus the connection that owns it.
type Dialer func(url string) (Channel, io.Closer, error)

func DialAMQP(url string) (Channel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn, nil
}

// Publisher keeps one connection open and redials lazily after a failure,
// so the service starts even when the broker is down.
type Publisher struct {
	url    string
	queue  string
	dial   Dialer
	logger *slog.Logger

	mu   sync.Mutex
	ch   Channel
	conn io.Closer
}

func NewPublisher(url, queue string, dial Dialer, logger *slog.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if dial == nil {
		dial = DialAMQP
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{url: url, queue: queue, dial: dial, logger: logger}
}

func (p *Publisher) PublishMatchFinished(ctx context.Context, event models.MatchFinishedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: marshal match %d: %w", ErrPublishFailed, event.MatchID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("%w: match %d: %w", ErrPublishFailed, event.MatchID, err)
	}

	p.logger.Debug("match result published", slog.Int("match_id", event.MatchID), slog.String("queue", p.queue))
	return nil
}

// channel must be called with mu held.
func (p *Publisher) channel() (Channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	ch, conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	// durable, чтобы сообщения пережили рестарт брокера
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	p.ch, p.conn = ch, conn
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
