package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"videopath-backend/pkg/logger"
)

const (
	TypeQuizAttempted  = "progress.quiz_attempted"
	TypeVideoCompleted = "progress.video_completed"
	TypePathCompleted  = "progress.path_completed"
	TypePathReopened   = "progress.path_reopened"
	TypeProgressReset  = "progress.reset"

	DefaultExchange = "videopath.progress"
)

// Event is a progression change published after it has been committed.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	UserID     uint                   `json:"user_id"`
	VideoID    uint                   `json:"video_id,omitempty"`
	QuizID     uint                   `json:"quiz_id,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// New builds an event stamped with a fresh id and the current time.
func New(eventType string, userID uint) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	enabled  bool
}

// NewPublisher connects to RabbitMQ and declares a durable topic exchange.
// An empty URL yields a publisher that only logs.
func NewPublisher(url, exchange string) (*AMQPPublisher, error) {
	if strings.TrimSpace(url) == "" {
		logger.Warn("AMQP URL is empty, progression events are disabled", nil)
		return &AMQPPublisher{enabled: false}, nil
	}
	if strings.TrimSpace(exchange) == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		enabled:  true,
	}, nil
}

func (p *AMQPPublisher) Enabled() bool {
	return p != nil && p.enabled
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	if !p.Enabled() {
		logger.Debug("Event publishing is disabled, skipping event", map[string]interface{}{"type": event.Type, "user_id": event.UserID})
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(pubCtx, p.exchange, event.Type, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if !p.Enabled() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			logger.Error(err, "Error closing RabbitMQ channel", nil)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
