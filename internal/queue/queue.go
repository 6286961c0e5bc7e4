package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExtractQueue = "extract_queue"
	RebuildQueue = "rebuild_queue"

	retrySuffix = "_retry"
	dlqSuffix   = "_dlq"

	retryDelay = 10 * time.Second
)

// Queues lists every work queue the worker consumes.
var Queues = []string{ExtractQueue, RebuildQueue}

// ExtractMsg asks the worker to run extraction for a stored document.
type ExtractMsg struct {
	DocumentID    string `json:"document_id"`
	UserID        string `json:"user_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// RebuildMsg asks the worker to repopulate a user's graph from all approved
// review items.
type RebuildMsg struct {
	UserID        string `json:"user_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Publisher sends a message body to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

func Init() *amqp091.Connection {
	user := util.GetEnvString("RABBITMQ_USER", "guest")
	pass := util.GetEnvString("RABBITMQ_PASSWORD", "guest")
	host := util.GetEnvString("RABBITMQ_HOST", "localhost")
	port := util.GetEnvString("RABBITMQ_PORT", "5672")

	connURL := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("[Queue] Failed to connect to RabbitMQ", "err", err)
	}
	return conn
}

// SetupQueues declares each queue with its retry and dead letter queue.
// Messages in the retry queue expire back into the work queue after
// retryDelay.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s: %w", name, err)
		}

		dlqName := name + dlqSuffix
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s: %w", dlqName, err)
		}

		retryName := name + retrySuffix
		_, err := ch.QueueDeclare(retryName, true, false, false, false, amqp091.Table{
			"x-message-ttl":             int32(retryDelay.Milliseconds()),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": name,
		})
		if err != nil {
			return fmt.Errorf("failed to declare %s: %w", retryName, err)
		}
	}
	return nil
}

// channelPublisher is the publishing half of *amqp091.Channel.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPPublisher publishes persistent messages to the default exchange. A
// channel is not safe for concurrent publishing, so calls are serialized.
type AMQPPublisher struct {
	mu sync.Mutex
	ch channelPublisher
}

func NewAMQPPublisher(ch *amqp091.Channel) *AMQPPublisher {
	return &AMQPPublisher{ch: ch}
}

func (p *AMQPPublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(ctx, "", queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}

func PublishExtract(ctx context.Context, p Publisher, msg ExtractMsg) error {
	return publishJSON(ctx, p, ExtractQueue, msg)
}

func PublishRebuild(ctx context.Context, p Publisher, msg RebuildMsg) error {
	return publishJSON(ctx, p, RebuildQueue, msg)
}

func publishJSON(ctx context.Context, p Publisher, queueName string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, queueName, body); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return nil
}
