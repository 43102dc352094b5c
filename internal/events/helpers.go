package events

import (
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Event types
const (
	EventPredictionCompleted = "prediction.completed"
	EventPredictionRequested = "prediction.requested"
)

const (
	eventSource  = "seasoncast"
	eventVersion = "1.0"
)

// SanitizeUTF8 drops invalid UTF-8 sequences. Protobuf rejects them in string fields.
func SanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}

// newEnvelope wraps a payload with the common event header
func newEnvelope(id, eventType string, at time.Time, payload map[string]interface{}) (*structpb.Struct, error) {
	ts := timestamppb.New(at)
	return structpb.NewStruct(map[string]interface{}{
		"id":      SanitizeUTF8(id),
		"type":    eventType,
		"source":  eventSource,
		"version": eventVersion,
		"timestamp": map[string]interface{}{
			"seconds": float64(ts.GetSeconds()),
			"nanos":   float64(ts.GetNanos()),
		},
		"payload": payload,
	})
}

// envelopeTime reads the timestamp written by newEnvelope
func envelopeTime(env *structpb.Struct) time.Time {
	ts := env.GetFields()["timestamp"].GetStructValue().GetFields()
	return (&timestamppb.Timestamp{
		Seconds: int64(ts["seconds"].GetNumberValue()),
		Nanos:   int32(ts["nanos"].GetNumberValue()),
	}).AsTime()
}

func stringMap(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[SanitizeUTF8(k)] = SanitizeUTF8(v)
	}
	return out
}
