package consumers

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	kafkaadapter "seasoncast/internal/adapters/kafka"
	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/internal/events"
	"seasoncast/internal/metrics"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
)

// MessageSource is the subset of the Kafka consumer this consumer drives
type MessageSource interface {
	Consume(ctx context.Context, handler kafkaadapter.MessageHandler) error
	Close() error
}

var _ MessageSource = (*kafkaadapter.Consumer)(nil)

// Predictor runs one prediction; the prediction service publishes the
// completed event itself
type Predictor interface {
	Predict(ctx context.Context, category garment.Category, record garment.AttributeRecord, source prediction.Source) (*prediction.Prediction, error)
}

// PredictionRequestConsumer reads attribute records from predictions.requested
// and classifies each one. Completed predictions reach predictions.completed
// through the service's publisher.
type PredictionRequestConsumer struct {
	source         MessageSource
	predictor      Predictor
	log            *logger.Logger
	processTimeout time.Duration
}

// NewPredictionRequestConsumer creates a new prediction request consumer
func NewPredictionRequestConsumer(source MessageSource, predictor Predictor, log *logger.Logger) *PredictionRequestConsumer {
	return &PredictionRequestConsumer{
		source:         source,
		predictor:      predictor,
		log:            log.Component("prediction_request_consumer"),
		processTimeout: 5 * time.Second,
	}
}

// Start consumes until ctx is cancelled
func (c *PredictionRequestConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting prediction request consumer...")

	defer func() {
		if err := c.source.Close(); err != nil {
			c.log.Errorw("Failed to close prediction request consumer", "error", err)
		} else {
			c.log.Info("✓ Prediction request consumer closed")
		}
	}()

	err := c.source.Consume(ctx, c.handle)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// handle processes one message. Malformed and rejected records are logged
// and skipped; redelivering them would fail the same way.
func (c *PredictionRequestConsumer) handle(ctx context.Context, msg kafka.Message) error {
	// Let the current record finish during shutdown
	processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.processTimeout)
	defer cancel()

	req, err := events.DecodeRequest(kafkaadapter.HeaderValue(msg.Headers, kafkaadapter.HeaderContentType), msg.Value)
	if err != nil {
		metrics.KafkaMessages.WithLabelValues(msg.Topic, "rejected").Inc()
		c.log.Warnw("Dropping malformed prediction request",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	if req.RequestID == "" {
		req.RequestID = kafkaadapter.HeaderValue(msg.Headers, kafkaadapter.HeaderRequestID)
	}

	category, err := garment.ParseCategory(req.Category)
	if err != nil {
		metrics.KafkaMessages.WithLabelValues(msg.Topic, "rejected").Inc()
		c.log.Warnw("Dropping prediction request for unknown category",
			"request_id", req.RequestID,
			"category", req.Category,
		)
		return nil
	}

	processCtx = prediction.WithRequestID(processCtx, req.RequestID)
	p, err := c.predictor.Predict(processCtx, category, req.Attributes, prediction.SourceKafka)
	if err != nil {
		status := "failed"
		if errors.IsClientError(err) || errors.Is(err, errors.ErrSchemaDrift) {
			status = "rejected"
		}
		metrics.KafkaMessages.WithLabelValues(msg.Topic, status).Inc()
		c.log.Warnw("Prediction request failed",
			"request_id", req.RequestID,
			"category", category,
			"status", status,
			"error", err,
		)
		if status == "failed" {
			return errors.Wrapf(err, "request %s", req.RequestID)
		}
		return nil
	}

	metrics.KafkaMessages.WithLabelValues(msg.Topic, "success").Inc()
	c.log.Debugw("Prediction request processed",
		"request_id", req.RequestID,
		"prediction_id", p.ID,
		"season", p.Season,
		"cached", p.Cached,
	)
	return nil
}
