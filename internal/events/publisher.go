package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	kafkaadapter "seasoncast/internal/adapters/kafka"
	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
)

// BinaryProducer is the part of the Kafka producer the publisher needs
type BinaryProducer interface {
	PublishBinary(ctx context.Context, topic string, key []byte, data []byte, headers ...kafka.Header) error
}

var _ BinaryProducer = (*kafkaadapter.Producer)(nil)

// Compile-time check
var _ prediction.Publisher = (*PredictionPublisher)(nil)

// PredictionPublisher publishes finished predictions to Kafka as protobuf Struct envelopes
type PredictionPublisher struct {
	producer BinaryProducer
	topic    string
	log      *logger.Logger
}

// NewPredictionPublisher creates a new prediction publisher
func NewPredictionPublisher(producer BinaryProducer, topic string) *PredictionPublisher {
	if topic == "" {
		topic = kafkaadapter.TopicPredictionsCompleted
	}
	return &PredictionPublisher{
		producer: producer,
		topic:    topic,
		log:      logger.Get().Component("prediction_publisher"),
	}
}

// PublishCompleted publishes a prediction.completed event keyed by category.
// The request ID of the originating Kafka request, if any, travels in both
// the payload and the request-id header.
func (p *PredictionPublisher) PublishCompleted(ctx context.Context, pred *prediction.Prediction) error {
	data, err := EncodeCompleted(pred)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: kafkaadapter.HeaderContentType, Value: []byte(kafkaadapter.ContentTypeProtobuf)},
		{Key: kafkaadapter.HeaderEventType, Value: []byte(EventPredictionCompleted)},
	}
	if pred.RequestID != "" {
		headers = append(headers, kafka.Header{Key: kafkaadapter.HeaderRequestID, Value: []byte(pred.RequestID)})
	}

	if err := p.producer.PublishBinary(ctx, p.topic, []byte(pred.Category.String()), data, headers...); err != nil {
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Event published",
		"topic", p.topic,
		"prediction_id", pred.ID,
		"request_id", pred.RequestID,
		"cached", pred.Cached,
		"size_bytes", len(data),
	)
	return nil
}

// EncodeCompleted serializes a prediction into a prediction.completed envelope
func EncodeCompleted(pred *prediction.Prediction) ([]byte, error) {
	probabilities := make(map[string]interface{}, len(pred.Probabilities))
	for s, v := range pred.Probabilities {
		probabilities[s.String()] = v
	}
	unencoded := make([]interface{}, len(pred.Unencoded))
	for i, u := range pred.Unencoded {
		unencoded[i] = SanitizeUTF8(u)
	}

	// A cache hit replays an earlier prediction; its event still needs its own ID
	eventID := pred.ID.String()
	if pred.Cached {
		eventID = uuid.NewString()
	}

	env, err := newEnvelope(eventID, EventPredictionCompleted, pred.CreatedAt, map[string]interface{}{
		"prediction_id":  pred.ID.String(),
		"category":       pred.Category.String(),
		"season":         pred.Season.String(),
		"label":          float64(pred.Label),
		"confidence":     pred.Confidence,
		"probabilities":  probabilities,
		"attributes":     stringMap(pred.Attributes),
		"unencoded":      unencoded,
		"schema_version": pred.SchemaVersion,
		"source":         string(pred.Source),
		"request_id":     SanitizeUTF8(pred.RequestID),
		"cached":         pred.Cached,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build event")
	}

	data, err := proto.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "marshal protobuf")
	}
	return data, nil
}

// CompletedEvent is the decoded form of a prediction.completed envelope
type CompletedEvent struct {
	ID         string
	Type       string
	Prediction prediction.Prediction
}

// DecodeCompleted parses a prediction.completed envelope
func DecodeCompleted(data []byte) (*CompletedEvent, error) {
	var env structpb.Struct
	if err := proto.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "unmarshal protobuf")
	}

	fields := env.GetFields()
	payload := fields["payload"].GetStructValue().GetFields()

	ev := &CompletedEvent{
		ID:   fields["id"].GetStringValue(),
		Type: fields["type"].GetStringValue(),
	}
	if ev.Type != EventPredictionCompleted {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unexpected event type %q", ev.Type)
	}

	pred := &ev.Prediction
	if err := pred.ID.UnmarshalText([]byte(payload["prediction_id"].GetStringValue())); err != nil {
		return nil, errors.Wrap(err, "prediction_id")
	}
	pred.Category = garment.Category(payload["category"].GetStringValue())
	pred.Season = garment.Season(payload["season"].GetStringValue())
	pred.Label = int(payload["label"].GetNumberValue())
	pred.Confidence = payload["confidence"].GetNumberValue()
	pred.SchemaVersion = payload["schema_version"].GetStringValue()
	pred.Source = prediction.Source(payload["source"].GetStringValue())
	pred.RequestID = payload["request_id"].GetStringValue()
	pred.Cached = payload["cached"].GetBoolValue()
	pred.CreatedAt = envelopeTime(&env)

	pred.Probabilities = make(map[garment.Season]float64)
	for k, v := range payload["probabilities"].GetStructValue().GetFields() {
		pred.Probabilities[garment.Season(k)] = v.GetNumberValue()
	}
	pred.Attributes = make(garment.AttributeRecord)
	for k, v := range payload["attributes"].GetStructValue().GetFields() {
		pred.Attributes[k] = v.GetStringValue()
	}
	for _, v := range payload["unencoded"].GetListValue().GetValues() {
		pred.Unencoded = append(pred.Unencoded, v.GetStringValue())
	}

	return ev, nil
}
