package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
	"seasoncast/pkg/reconnect"
)

// commitTimeout bounds the offset commit that follows a handled message
const commitTimeout = 5 * time.Second

// messageReader is the part of *kafka.Reader the consumer drives
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ messageReader = (*kafka.Reader)(nil)

// Consumer handles Kafka message consumption
type Consumer struct {
	reader  messageReader
	backoff *reconnect.Manager
	log     *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
	Backoff  reconnect.Config // pacing of fetch retries while the broker is unreachable
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10e6 // 10MB
	}

	log := logger.Get().With("component", "kafka_consumer", "topic", cfg.Topic)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: kafka.FirstOffset, // Start from beginning if no offset committed
	})

	log.Infow("Kafka consumer created",
		"brokers", cfg.Brokers,
		"group_id", cfg.GroupID,
	)

	return &Consumer{
		reader:  reader,
		backoff: reconnect.NewManager(cfg.Backoff, log),
		log:     log,
	}
}

// MessageHandler is a function that processes a message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consume reads messages until ctx is cancelled.
// Offsets are committed after the handler returns, including on handler failure.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.log.Info("Starting consumer")

	for {
		msg, err := c.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumer stopped")
				return ctx.Err()
			}
			c.backoff.RecordFailure(err)
			if err := c.backoff.Wait(ctx); err != nil {
				c.log.Info("Consumer stopped")
				return err
			}
			continue
		}
		c.backoff.RecordSuccess()

		if err := handler(ctx, msg); err != nil {
			c.log.Warnw("Failed to handle message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}

		c.commit(ctx, msg)
	}
}

// commit outlives shutdown so the message handled last is not redelivered
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
		c.log.Errorw("Failed to commit offset",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

// FetchMessage reads the next message without committing it.
// It checks for shutdown before blocking on I/O.
func (c *Consumer) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return kafka.Message{}, ctx.Err()
		}
		return kafka.Message{}, errors.Wrap(err, "fetch message")
	}
	return msg, nil
}

// Healthy returns ErrUnavailable while repeated fetch failures hold the circuit open
func (c *Consumer) Healthy() error {
	return c.backoff.Healthy()
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
