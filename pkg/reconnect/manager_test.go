package reconnect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(cfg Config) (*Manager, *clock) {
	m := NewManager(cfg, logger.NewNop())
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.now = c.now
	return m, c
}

func TestNewManager_Defaults(t *testing.T) {
	m, _ := newTestManager(Config{Jitter: 3})

	assert.Equal(t, time.Second, m.minBackoff)
	assert.Equal(t, time.Minute, m.maxBackoff)
	assert.Equal(t, 2.0, m.backoffMultiplier)
	assert.Equal(t, 10, m.maxRetries)
	assert.Equal(t, 5*time.Minute, m.circuitResetAfter)
	assert.Equal(t, 0.0, m.jitter)
	assert.Equal(t, time.Second, m.GetBackoff())
}

func TestManager_BackoffGrowsAndCaps(t *testing.T) {
	m, _ := newTestManager(Config{MinBackoff: time.Second, MaxBackoff: 5 * time.Second, MaxRetries: 100})
	boom := errors.New("broker down")

	m.RecordFailure(boom)
	assert.Equal(t, 2*time.Second, m.GetBackoff())
	m.RecordFailure(boom)
	assert.Equal(t, 4*time.Second, m.GetBackoff())
	m.RecordFailure(boom)
	assert.Equal(t, 5*time.Second, m.GetBackoff())
	assert.Equal(t, 5*time.Second, m.NextDelay())

	m.RecordSuccess()
	assert.Equal(t, time.Second, m.GetBackoff())
	stats := m.GetStats()
	assert.Equal(t, 0, stats.ConsecutiveFailures)
	assert.Equal(t, 1, stats.TotalRecoveries)
}

func TestManager_CircuitBreaker(t *testing.T) {
	m, clk := newTestManager(Config{MaxRetries: 2, CircuitResetAfter: time.Minute})
	boom := errors.New("broker down")

	m.RecordFailure(boom)
	assert.NoError(t, m.Healthy())
	assert.True(t, m.ShouldRetry())

	m.RecordFailure(boom)
	assert.False(t, m.ShouldRetry())
	assert.True(t, errors.Is(m.Healthy(), errors.ErrUnavailable))
	assert.Equal(t, time.Minute, m.NextDelay())

	clk.advance(40 * time.Second)
	assert.Equal(t, 20*time.Second, m.NextDelay())

	clk.advance(20 * time.Second)
	assert.True(t, m.ShouldRetry())
	assert.Equal(t, time.Duration(0), m.NextDelay())

	m.RecordSuccess()
	assert.NoError(t, m.Healthy())
	assert.False(t, m.GetStats().CircuitOpen)
}

func TestManager_RecordSuccessWithoutFailures(t *testing.T) {
	m, _ := newTestManager(Config{})
	m.RecordSuccess()
	assert.Equal(t, 0, m.GetStats().TotalRecoveries)
}

func TestManager_WaitHonoursContext(t *testing.T) {
	m, _ := newTestManager(Config{MinBackoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Wait(ctx), context.Canceled)
}

func TestManager_ReconnectWithBackoff(t *testing.T) {
	m, _ := newTestManager(Config{MinBackoff: time.Millisecond, MaxRetries: 100})
	ctx := context.Background()

	calls := 0
	err := m.ReconnectWithBackoff(ctx, func(context.Context) error {
		calls++
		return errors.New("refused")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconnection failed")
	assert.Equal(t, 1, m.GetStats().ConsecutiveFailures)

	require.NoError(t, m.ReconnectWithBackoff(ctx, func(context.Context) error {
		calls++
		return nil
	}))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, m.GetStats().ConsecutiveFailures)
}

func TestCalculateJitter(t *testing.T) {
	d := 10 * time.Second
	assert.Equal(t, d, CalculateJitter(d, 0))
	assert.Equal(t, d, CalculateJitter(d, 2))

	for i := 0; i < 50; i++ {
		j := CalculateJitter(d, 0.5)
		assert.GreaterOrEqual(t, j, d)
		assert.LessOrEqual(t, j, 15*time.Second)
	}
}
