package predict

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/encoder"
	"seasoncast/internal/ml/season"
	predictionsvc "seasoncast/internal/services/prediction"
	"seasoncast/internal/testsupport"
	"seasoncast/pkg/auth"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
	"seasoncast/pkg/relay"
)

type stubClassifier struct{ err error }

func (s stubClassifier) Classify(ctx context.Context, v *encoder.FeatureVector) (*season.ClassificationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &season.ClassificationResult{
		Season:        garment.SeasonWinter,
		Label:         2,
		Confidence:    0.9,
		Probabilities: map[garment.Season]float64{garment.SeasonWinter: 0.9, garment.SeasonSpring: 0.1},
	}, nil
}

func newMux(t *testing.T, classifier predictionsvc.Classifier) *http.ServeMux {
	t.Helper()
	svc, err := predictionsvc.NewService(predictionsvc.Deps{
		Registry:   testsupport.DefaultRegistry(),
		Classifier: classifier,
		Logger:     logger.NewNop(),
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(svc, 2, logger.NewNop()).Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	switch b := body.(type) {
	case nil:
	case string:
		payload = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		payload = string(raw)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(payload)))
	return rec
}

func TestPredict(t *testing.T) {
	mux := newMux(t, stubClassifier{})

	rec := do(t, mux, http.MethodPost, "/v1/predict/dress", PredictRequest{Attributes: testsupport.NewDressFixture().Build()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "winter", got["season"])
	assert.Equal(t, "dress", got["category"])
	assert.Equal(t, "http", got["source"])
	assert.NotEmpty(t, got["id"])
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		name       string
		classifier predictionsvc.Classifier
		path       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"unknown category", stubClassifier{}, "/v1/predict/shoes", PredictRequest{}, http.StatusNotFound, "unknown_category"},
		{"malformed json", stubClassifier{}, "/v1/predict/dress", "{", http.StatusBadRequest, "invalid_input"},
		{
			"missing ordinal", stubClassifier{}, "/v1/predict/dress",
			PredictRequest{Attributes: testsupport.NewDressFixture().Without("Length").Build()},
			http.StatusUnprocessableEntity, "missing_field",
		},
		{
			"model not loaded", stubClassifier{err: errors.ErrModelNotLoaded}, "/v1/predict/jacket",
			PredictRequest{Attributes: testsupport.NewJacketFixture().Build()},
			http.StatusServiceUnavailable, "model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newMux(t, tt.classifier), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestPredict_FieldProblemsReported(t *testing.T) {
	mux := newMux(t, stubClassifier{})
	record := testsupport.NewDressFixture().With("Fit", "oversize_fit").Without("Length").Build()

	rec := do(t, mux, http.MethodPost, "/v1/predict/dress", PredictRequest{Attributes: record})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Fields)
	assert.Equal(t, "Length", resp.Fields[0].Field)
}

func TestPredictBatch(t *testing.T) {
	mux := newMux(t, stubClassifier{})

	rec := do(t, mux, http.MethodPost, "/v1/predict/dress/batch", BatchRequest{Records: []garment.AttributeRecord{
		testsupport.NewDressFixture().Build(),
		testsupport.NewDressFixture().Without("Fit").Build(),
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	assert.NotEmpty(t, resp.Items[1].Error)

	rec = do(t, mux, http.MethodPost, "/v1/predict/dress/batch", BatchRequest{Records: make([]garment.AttributeRecord, 3)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEncode(t *testing.T) {
	mux := newMux(t, stubClassifier{err: errors.New("must not be called")})
	record := testsupport.NewDressFixture().With("Collar", "no_collar").With("Breathable", "Yes").Build()

	rec := do(t, mux, http.MethodPost, "/v1/encode/dress", PredictRequest{Attributes: record})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EncodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 71, resp.Width)
	assert.Len(t, resp.Values, 71)
	assert.Equal(t, map[string]float64{"Collar_no_collar": 1, "Breathable": 1}, resp.NonZero)
}

func TestSchemas(t *testing.T) {
	mux := newMux(t, stubClassifier{})

	rec := do(t, mux, http.MethodGet, "/v1/schemas", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Schemas []SchemaResponse `json:"schemas"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Schemas, 2)

	rec = do(t, mux, http.MethodGet, "/v1/schemas/jacket", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var jacket SchemaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jacket))
	assert.Equal(t, 73, jacket.Width)
	assert.Equal(t, []garment.Season{"spring", "summer", "winter", "autumn"}, jacket.Labels)

	var fit *FieldResponse
	for i := range jacket.Fields {
		if jacket.Fields[i].Name == "Fit" {
			fit = &jacket.Fields[i]
		}
	}
	require.NotNil(t, fit)
	assert.True(t, fit.Required)
	assert.NotEmpty(t, fit.Options)
}

func TestRecent_HistoryDisabled(t *testing.T) {
	mux := newMux(t, stubClassifier{})

	rec := do(t, mux, http.MethodGet, "/v1/predictions/recent?category=dress", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	cursor := relay.EncodeCursor(4)
	for _, query := range []string{
		"limit=0", "first=x", "first=1&last=1", "last=500",
		"first=2&limit=3", "last=2&limit=3",
		"last=2&after=" + cursor, "first=2&before=" + cursor,
	} {
		rec = do(t, mux, http.MethodGet, "/v1/predictions/recent?"+query, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}

	rec = do(t, mux, http.MethodGet, "/v1/predictions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryRoutesRequireToken(t *testing.T) {
	svc, err := predictionsvc.NewService(predictionsvc.Deps{
		Registry:   testsupport.DefaultRegistry(),
		Classifier: stubClassifier{},
		Logger:     logger.NewNop(),
	})
	require.NoError(t, err)

	tokens := auth.NewJWTService("history-secret-min-32-characters-long", "seasoncast", time.Hour)
	mux := http.NewServeMux()
	NewHandler(svc, 2, logger.NewNop()).WithAuth(tokens).Register(mux)

	get := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/predictions/stats", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := get("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	assert.Equal(t, http.StatusUnauthorized, get("garbage").Code)

	noScope, err := tokens.GenerateToken("reporting")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(noScope).Code)

	// Authorized, then rejected by the service because history is disabled
	reader, err := tokens.GenerateToken("reporting", auth.ScopeHistoryRead)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, get(reader).Code)

	// Prediction routes stay open
	rec = do(t, mux, http.MethodGet, "/v1/schemas", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(errors.ErrNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(&errors.DriftError{Category: "dress"}))
	assert.Equal(t, http.StatusTooManyRequests, StatusFor(errors.ErrRateLimitExceeded))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(auth.ErrExpiredToken))
	assert.Equal(t, http.StatusForbidden, StatusFor(errors.ErrForbidden))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}
