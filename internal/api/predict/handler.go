package predict

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/internal/encoder"
	predictionsvc "seasoncast/internal/services/prediction"
	"seasoncast/pkg/auth"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
	"seasoncast/pkg/relay"
)

const maxBodyBytes = 1 << 20

// Service is the prediction service as seen by the HTTP layer
type Service interface {
	Predict(ctx context.Context, category garment.Category, record garment.AttributeRecord, source prediction.Source) (*prediction.Prediction, error)
	PredictBatch(ctx context.Context, category garment.Category, records []garment.AttributeRecord, source prediction.Source) ([]predictionsvc.BatchItem, error)
	Encode(ctx context.Context, category garment.Category, record garment.AttributeRecord) (*encoder.Result, error)
	Schema(category garment.Category) (*garment.Schema, error)
	Schemas() []*garment.Schema
	Get(ctx context.Context, id uuid.UUID) (*prediction.Prediction, error)
	Recent(ctx context.Context, category garment.Category, page relay.PaginationParams) (*relay.Connection[prediction.Prediction], error)
	SeasonBreakdown(ctx context.Context, since time.Time) ([]prediction.SeasonCount, error)
}

var _ Service = (*predictionsvc.Service)(nil)

// Handler serves the /v1 prediction API
type Handler struct {
	svc             Service
	log             *logger.Logger
	maxBatchRecords int
	tokens          TokenValidator
}

// NewHandler creates a new prediction API handler
func NewHandler(svc Service, maxBatchRecords int, log *logger.Logger) *Handler {
	if maxBatchRecords <= 0 {
		maxBatchRecords = 500
	}
	return &Handler{
		svc:             svc,
		log:             log.Component("predict_api"),
		maxBatchRecords: maxBatchRecords,
	}
}

// Register mounts the routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/predict/{category}", h.HandlePredict)
	mux.HandleFunc("POST /v1/predict/{category}/batch", h.HandlePredictBatch)
	mux.HandleFunc("POST /v1/encode/{category}", h.HandleEncode)
	mux.HandleFunc("GET /v1/schemas", h.HandleSchemas)
	mux.HandleFunc("GET /v1/schemas/{category}", h.HandleSchema)
	mux.HandleFunc("GET /v1/predictions/recent", h.requireScope(auth.ScopeHistoryRead, h.HandleRecent))
	mux.HandleFunc("GET /v1/predictions/stats", h.requireScope(auth.ScopeHistoryRead, h.HandleStats))
	mux.HandleFunc("GET /v1/predictions/{id}", h.requireScope(auth.ScopeHistoryRead, h.HandleGet))
}

// PredictRequest is the body of predict and encode calls
type PredictRequest struct {
	Attributes garment.AttributeRecord `json:"attributes"`
}

// BatchRequest is the body of a batch predict call
type BatchRequest struct {
	Records []garment.AttributeRecord `json:"records"`
}

// BatchResponse reports every record of a batch in input order
type BatchResponse struct {
	Category  garment.Category          `json:"category"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
	Items     []predictionsvc.BatchItem `json:"items"`
}

// EncodeResponse exposes the feature vector for debugging training/serving skew
type EncodeResponse struct {
	Category  garment.Category   `json:"category"`
	Width     int                `json:"width"`
	NonZero   map[string]float64 `json:"non_zero"`
	Values    []float64          `json:"values"`
	Unencoded []string           `json:"unencoded,omitempty"`
}

// SchemaResponse describes one category's accepted input
type SchemaResponse struct {
	Category garment.Category `json:"category"`
	Version  string           `json:"version"`
	Labels   []garment.Season `json:"labels"`
	Width    int              `json:"width"`
	Fields   []FieldResponse  `json:"fields"`
}

// FieldResponse describes one attribute
type FieldResponse struct {
	Name     string            `json:"name"`
	Kind     garment.FieldKind `json:"kind"`
	Required bool              `json:"required"`
	Prompt   string            `json:"prompt,omitempty"`
	Options  []string          `json:"options"`
	Baseline string            `json:"baseline,omitempty"`
	Aliases  []string          `json:"aliases,omitempty"`
}

// HandlePredict classifies one record
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	category, ok := h.category(w, r)
	if !ok {
		return
	}

	var req PredictRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.svc.Predict(r.Context(), category, req.Attributes, prediction.SourceHTTP)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePredictBatch classifies up to maxBatchRecords records
func (h *Handler) HandlePredictBatch(w http.ResponseWriter, r *http.Request) {
	category, ok := h.category(w, r)
	if !ok {
		return
	}

	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Records) == 0 {
		h.writeError(w, r, errors.NewValidationError("records", "at least one record is required", 0))
		return
	}
	if len(req.Records) > h.maxBatchRecords {
		h.writeError(w, r, errors.NewValidationError("records", "batch too large", len(req.Records)))
		return
	}

	items, err := h.svc.PredictBatch(r.Context(), category, req.Records, prediction.SourceHTTP)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := BatchResponse{Category: category, Items: items}
	for _, item := range items {
		if item.Err != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleEncode returns the feature vector without classifying
func (h *Handler) HandleEncode(w http.ResponseWriter, r *http.Request) {
	category, ok := h.category(w, r)
	if !ok {
		return
	}

	var req PredictRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Encode(r.Context(), category, req.Attributes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EncodeResponse{
		Category:  category,
		Width:     res.Vector.Len(),
		NonZero:   res.Vector.NonZero(),
		Values:    res.Vector.Values,
		Unencoded: res.Unencoded,
	})
}

// HandleSchemas lists every category schema
func (h *Handler) HandleSchemas(w http.ResponseWriter, r *http.Request) {
	schemas := h.svc.Schemas()
	out := make([]SchemaResponse, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, toSchemaResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schemas": out})
}

// HandleSchema describes one category
func (h *Handler) HandleSchema(w http.ResponseWriter, r *http.Request) {
	category, ok := h.category(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Schema(category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSchemaResponse(s))
}

// HandleRecent pages through stored predictions, newest first
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	var category garment.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		c, err := garment.ParseCategory(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		category = c
	}

	page, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := h.svc.Recent(r.Context(), category, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// pageParams reads first/after/last/before; limit is accepted as an alias of
// first and may not be combined with first or last
func pageParams(r *http.Request) (relay.PaginationParams, error) {
	q := r.URL.Query()
	var page relay.PaginationParams

	if raw := q.Get("limit"); raw != "" && (q.Get("first") != "" || q.Get("last") != "") {
		return page, errors.NewValidationError("limit", "cannot be combined with first or last", raw)
	}

	for _, name := range []string{"first", "limit", "last"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, errors.NewValidationError(name, "must be an integer", raw)
		}
		if name == "last" {
			page.Last = &n
		} else {
			page.First = &n
		}
	}
	if raw := q.Get("after"); raw != "" {
		page.After = &raw
	}
	if raw := q.Get("before"); raw != "" {
		page.Before = &raw
	}
	return page, page.Validate()
}

// HandleStats returns the per-season breakdown over a window
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.writeError(w, r, errors.NewValidationError("window", "must be a positive duration", raw))
			return
		}
		window = d
	}

	counts, err := h.svc.SeasonBreakdown(r.Context(), time.Now().Add(-window))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"window": window.String(),
		"counts": counts,
	})
}

// HandleGet returns one stored prediction
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, errors.NewValidationError("id", "must be a UUID", r.PathValue("id")))
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) category(w http.ResponseWriter, r *http.Request) (garment.Category, bool) {
	c, err := garment.ParseCategory(r.PathValue("category"))
	if err != nil {
		h.writeError(w, r, err)
		return "", false
	}
	return c, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		h.writeError(w, r, errors.Wrapf(errors.ErrInvalidInput, "read body: %v", err))
		return false
	}
	if len(body) > maxBodyBytes {
		h.writeError(w, r, errors.Wrap(errors.ErrInvalidInput, "request body too large"))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		h.writeError(w, r, errors.Wrapf(errors.ErrInvalidInput, "malformed JSON: %v", err))
		return false
	}
	return true
}

func toSchemaResponse(s *garment.Schema) SchemaResponse {
	fields := make([]FieldResponse, 0, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		fields = append(fields, FieldResponse{
			Name:     f.Name,
			Kind:     f.Kind,
			Required: f.Required || f.Kind == garment.KindOrdinal,
			Prompt:   f.Prompt,
			Options:  f.Options(),
			Baseline: f.Baseline,
			Aliases:  f.Aliases,
		})
	}
	return SchemaResponse{
		Category: s.Category,
		Version:  s.Version,
		Labels:   s.Labels,
		Width:    s.Width(),
		Fields:   fields,
	}
}
