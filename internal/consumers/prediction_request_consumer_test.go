package consumers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkaadapter "seasoncast/internal/adapters/kafka"
	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/internal/events"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
)

type fakeSource struct {
	mu       sync.Mutex
	messages []kafka.Message
	results  []error
	closed   bool
}

func (s *fakeSource) Consume(ctx context.Context, handler kafkaadapter.MessageHandler) error {
	for _, msg := range s.messages {
		err := handler(ctx, msg)
		s.mu.Lock()
		s.results = append(s.results, err)
		s.mu.Unlock()
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) handled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type fakePredictor struct {
	calls      []garment.Category
	requestIDs []string
	publisher  prediction.Publisher
	err        error
}

func (p *fakePredictor) Predict(ctx context.Context, category garment.Category, record garment.AttributeRecord, source prediction.Source) (*prediction.Prediction, error) {
	p.calls = append(p.calls, category)
	p.requestIDs = append(p.requestIDs, prediction.RequestIDFromContext(ctx))
	if p.err != nil {
		return nil, p.err
	}
	pred := &prediction.Prediction{
		ID:        uuid.New(),
		Category:  category,
		Season:    garment.SeasonWinter,
		Source:    source,
		RequestID: prediction.RequestIDFromContext(ctx),
		CreatedAt: time.Now().UTC(),
	}
	if p.publisher != nil {
		if err := p.publisher.PublishCompleted(ctx, pred); err != nil {
			return nil, err
		}
	}
	return pred, nil
}

type capturingProducer struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (c *capturingProducer) PublishBinary(ctx context.Context, topic string, key []byte, data []byte, headers ...kafka.Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, kafka.Message{Topic: topic, Key: key, Value: data, Headers: headers})
	return nil
}

func jsonMessage(t *testing.T, body string) kafka.Message {
	t.Helper()
	return kafka.Message{
		Topic:   kafkaadapter.TopicPredictionsRequested,
		Value:   []byte(body),
		Headers: []kafka.Header{{Key: kafkaadapter.HeaderContentType, Value: []byte(kafkaadapter.ContentTypeJSON)}},
	}
}

func protoMessage(t *testing.T, req *events.PredictionRequest) kafka.Message {
	t.Helper()
	data, err := events.EncodeRequest(req)
	require.NoError(t, err)
	return kafka.Message{
		Topic:   kafkaadapter.TopicPredictionsRequested,
		Value:   data,
		Headers: []kafka.Header{{Key: kafkaadapter.HeaderContentType, Value: []byte(kafkaadapter.ContentTypeProtobuf)}},
	}
}

func runConsumer(t *testing.T, source *fakeSource, predictor Predictor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	c := NewPredictionRequestConsumer(source, predictor, logger.NewNop())
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return source.handled() == len(source.messages) }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.True(t, source.closed)
}

func TestPredictionRequestConsumer_ProcessesRequests(t *testing.T) {
	source := &fakeSource{messages: []kafka.Message{
		jsonMessage(t, `{"request_id":"r1","category":"dress","attributes":{"Fit":"slim_fit"}}`),
		protoMessage(t, &events.PredictionRequest{RequestID: "r2", Category: "Jacket", Attributes: garment.AttributeRecord{"Fit": "regular_fit"}}),
	}}
	predictor := &fakePredictor{}

	runConsumer(t, source, predictor)

	assert.Equal(t, []garment.Category{garment.CategoryDress, garment.CategoryJacket}, predictor.calls)
	assert.Equal(t, []string{"r1", "r2"}, predictor.requestIDs)
	assert.Equal(t, []error{nil, nil}, source.results)
}

func TestPredictionRequestConsumer_CompletedEventCarriesRequestID(t *testing.T) {
	headerOnly := jsonMessage(t, `{"category":"dress","attributes":{"Fit":"slim_fit"}}`)
	headerOnly.Headers = append(headerOnly.Headers, kafka.Header{Key: kafkaadapter.HeaderRequestID, Value: []byte("r-header")})

	source := &fakeSource{messages: []kafka.Message{
		jsonMessage(t, `{"request_id":"r-body","category":"dress","attributes":{"Fit":"slim_fit"}}`),
		headerOnly,
	}}
	producer := &capturingProducer{}
	predictor := &fakePredictor{publisher: events.NewPredictionPublisher(producer, "")}

	runConsumer(t, source, predictor)

	require.Len(t, producer.messages, 2)
	for i, want := range []string{"r-body", "r-header"} {
		msg := producer.messages[i]
		assert.Equal(t, kafkaadapter.TopicPredictionsCompleted, msg.Topic)
		assert.Equal(t, want, kafkaadapter.HeaderValue(msg.Headers, kafkaadapter.HeaderRequestID))

		ev, err := events.DecodeCompleted(msg.Value)
		require.NoError(t, err)
		assert.Equal(t, want, ev.Prediction.RequestID)
		assert.Equal(t, prediction.SourceKafka, ev.Prediction.Source)
	}
}

func TestPredictionRequestConsumer_SkipsBadMessages(t *testing.T) {
	source := &fakeSource{messages: []kafka.Message{
		jsonMessage(t, `not json`),
		jsonMessage(t, `{"request_id":"r1","attributes":{}}`),
		jsonMessage(t, `{"request_id":"r2","category":"shoes"}`),
	}}
	predictor := &fakePredictor{}

	runConsumer(t, source, predictor)

	assert.Empty(t, predictor.calls)
	assert.Equal(t, []error{nil, nil, nil}, source.results)
}

func TestPredictionRequestConsumer_ErrorClassification(t *testing.T) {
	t.Run("client error is dropped", func(t *testing.T) {
		source := &fakeSource{messages: []kafka.Message{jsonMessage(t, `{"category":"dress"}`)}}
		runConsumer(t, source, &fakePredictor{err: errors.ErrMissingRequiredField})
		assert.NoError(t, source.results[0])
	})

	t.Run("server error is reported", func(t *testing.T) {
		source := &fakeSource{messages: []kafka.Message{jsonMessage(t, `{"request_id":"r9","category":"dress"}`)}}
		runConsumer(t, source, &fakePredictor{err: errors.ErrModelNotLoaded})
		require.Error(t, source.results[0])
		assert.Contains(t, source.results[0].Error(), "r9")
	})
}
