package events

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	kafkaadapter "seasoncast/internal/adapters/kafka"
	"seasoncast/internal/domain/garment"
	"seasoncast/pkg/errors"
)

// PredictionRequest is one record submitted on the predictions.requested topic
type PredictionRequest struct {
	RequestID  string                  `json:"request_id"`
	Category   string                  `json:"category"`
	Attributes garment.AttributeRecord `json:"attributes"`
}

// DecodeRequest parses a request message. JSON is the default encoding;
// protobuf Struct payloads are accepted when the content type says so.
func DecodeRequest(contentType string, data []byte) (*PredictionRequest, error) {
	var req PredictionRequest

	switch contentType {
	case kafkaadapter.ContentTypeProtobuf:
		var s structpb.Struct
		if err := proto.Unmarshal(data, &s); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "unmarshal protobuf request: %v", err)
		}
		fields := s.GetFields()
		req.RequestID = fields["request_id"].GetStringValue()
		req.Category = fields["category"].GetStringValue()
		req.Attributes = make(garment.AttributeRecord)
		for k, v := range fields["attributes"].GetStructValue().GetFields() {
			req.Attributes[k] = v.GetStringValue()
		}

	case "", kafkaadapter.ContentTypeJSON:
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "unmarshal json request: %v", err)
		}

	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported content type %q", contentType)
	}

	if req.Category == "" {
		return nil, errors.NewValidationError("category", "required", "")
	}
	return &req, nil
}

// EncodeRequest serializes a request as a protobuf Struct
func EncodeRequest(req *PredictionRequest) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]interface{}{
		"request_id": SanitizeUTF8(req.RequestID),
		"category":   req.Category,
		"attributes": stringMap(req.Attributes),
	})
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	return proto.Marshal(s)
}
