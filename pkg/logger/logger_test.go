package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasoncast/pkg/errors"
)

type recordingTracker struct {
	captured []error
}

func (r *recordingTracker) CaptureError(_ context.Context, err error, _ map[string]string) error {
	r.captured = append(r.captured, err)
	return nil
}

func (r *recordingTracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (r *recordingTracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {
}

func (r *recordingTracker) Flush(context.Context) error { return nil }

func TestErrorwForwardsWrappedError(t *testing.T) {
	tracker := &recordingTracker{}
	log := NewNop()
	log.errorTracker = tracker

	cause := errors.New("connection refused")
	log.Component("cache").Errorw("Failed to store prediction", "error", cause)

	require.Len(t, tracker.captured, 1)
	assert.True(t, errors.Is(tracker.captured[0], cause))
	assert.Contains(t, tracker.captured[0].Error(), "Failed to store prediction")
}

func TestErrorwWithoutErrorField(t *testing.T) {
	tracker := &recordingTracker{}
	log := NewNop()
	log.errorTracker = tracker

	log.Errorw("Worker panicked", "worker", "schema_auditor")

	require.Len(t, tracker.captured, 1)
	assert.True(t, errors.Is(tracker.captured[0], errors.ErrInternal))
}

func TestInitFallsBackToInfoLevel(t *testing.T) {
	require.NoError(t, Init("not-a-level", "development"))
	assert.True(t, Get().Desugar().Core().Enabled(0))
	assert.False(t, Get().Desugar().Core().Enabled(-1))
}
