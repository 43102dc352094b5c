package kafka

import "github.com/segmentio/kafka-go"

// Topic definitions for Kafka event streaming
const (
	// TopicPredictionsRequested carries attribute records submitted for batch prediction
	TopicPredictionsRequested = "predictions.requested"

	// TopicPredictionsCompleted carries one event per finished prediction
	TopicPredictionsCompleted = "predictions.completed"
)

// Message headers
const (
	HeaderContentType = "content-type"
	HeaderEventType   = "event-type"
	HeaderRequestID   = "request-id"

	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// HeaderValue returns the first header with the given key, or ""
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
