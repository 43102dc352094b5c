package predict

import (
	"context"
	"encoding/json"
	"net/http"

	"seasoncast/internal/metrics"
	"seasoncast/pkg/errors"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error  string         `json:"error"`
	Code   string         `json:"code"`
	Fields []FieldProblem `json:"fields,omitempty"`
	Drift  *DriftProblem  `json:"drift,omitempty"`
}

// FieldProblem points at one offending attribute
type FieldProblem struct {
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// DriftProblem carries the drift report when the encoder rejected a record
type DriftProblem struct {
	UnproducibleColumns []string `json:"unproducible_columns,omitempty"`
	UnencodedValues     []string `json:"unencoded_values,omitempty"`
}

// StatusFor maps an error to an HTTP status code
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrUnknownCategory), errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrMissingRequiredField),
		errors.Is(err, errors.ErrUnmappedOrdinalValue),
		errors.Is(err, errors.ErrInvalidValue),
		errors.Is(err, errors.ErrSchemaDrift):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, errors.ErrModelNotLoaded), errors.Is(err, errors.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, errors.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{
		Error: err.Error(),
		Code:  metrics.ErrorReason(err),
	}

	for _, fe := range errors.FieldErrors(err) {
		resp.Fields = append(resp.Fields, FieldProblem{
			Field:  fe.Field,
			Value:  fe.Value,
			Reason: fe.Kind.Error(),
		})
	}

	var drift *errors.DriftError
	if errors.As(err, &drift) {
		resp.Drift = &DriftProblem{
			UnproducibleColumns: drift.UnproducibleColumns,
			UnencodedValues:     drift.UnencodedValues,
		}
	}

	if status >= http.StatusInternalServerError {
		h.log.Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		if status == http.StatusInternalServerError {
			resp.Error = http.StatusText(status)
		}
	} else {
		h.log.Debugw("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
