package reconnect

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
)

// Manager paces retries of a failing connection with exponential backoff
// and opens a circuit after too many consecutive failures.
// Used by the Kafka consumers when the broker stops answering fetches.
type Manager struct {
	minBackoff        time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitter            float64
	maxRetries        int
	circuitResetAfter time.Duration

	mu                  sync.RWMutex
	currentBackoff      time.Duration
	consecutiveFailures int
	totalRecoveries     int
	circuitOpen         bool
	circuitOpenedAt     time.Time
	lastError           error

	now    func() time.Time
	logger *logger.Logger
}

// Config configures the reconnect manager
type Config struct {
	MinBackoff        time.Duration // Initial backoff (e.g. 1s)
	MaxBackoff        time.Duration // Max backoff (e.g. 1min)
	BackoffMultiplier float64       // Multiplier for exponential backoff (e.g. 2.0)
	Jitter            float64       // Fraction of the backoff added at random, 0..1
	MaxRetries        int           // Consecutive failures before the circuit opens
	CircuitResetAfter time.Duration // How long an open circuit blocks retries
}

// NewManager creates a reconnect manager, filling unset fields with defaults
func NewManager(config Config, log *logger.Logger) *Manager {
	if config.MinBackoff == 0 {
		config.MinBackoff = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = time.Minute
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = 2.0
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 10
	}
	if config.CircuitResetAfter == 0 {
		config.CircuitResetAfter = 5 * time.Minute
	}
	if config.Jitter < 0 || config.Jitter > 1 {
		config.Jitter = 0
	}

	return &Manager{
		minBackoff:        config.MinBackoff,
		maxBackoff:        config.MaxBackoff,
		backoffMultiplier: config.BackoffMultiplier,
		jitter:            config.Jitter,
		maxRetries:        config.MaxRetries,
		circuitResetAfter: config.CircuitResetAfter,
		currentBackoff:    config.MinBackoff,
		now:               time.Now,
		logger:            log,
	}
}

// ShouldRetry reports whether a retry may be attempted right now
func (m *Manager) ShouldRetry() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.circuitOpen {
		return m.now().Sub(m.circuitOpenedAt) >= m.circuitResetAfter
	}
	return true
}

// GetBackoff returns the current backoff duration
func (m *Manager) GetBackoff() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentBackoff
}

// NextDelay is how long to wait before the next attempt: the rest of the
// circuit reset period while the circuit is open, otherwise the backoff
func (m *Manager) NextDelay() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.circuitOpen {
		if remaining := m.circuitResetAfter - m.now().Sub(m.circuitOpenedAt); remaining > 0 {
			return remaining
		}
		return 0
	}
	return CalculateJitter(m.currentBackoff, m.jitter)
}

// Wait blocks for NextDelay or until ctx is done
func (m *Manager) Wait(ctx context.Context) error {
	delay := m.NextDelay()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure records a failed attempt and grows the backoff
func (m *Manager) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveFailures++
	m.lastError = err

	next := time.Duration(float64(m.currentBackoff) * m.backoffMultiplier)
	if next > m.maxBackoff {
		next = m.maxBackoff
	}
	m.currentBackoff = next

	m.logger.Warnw("Connection attempt failed",
		"consecutive_failures", m.consecutiveFailures,
		"next_backoff", m.currentBackoff,
		"error", err,
	)

	if m.consecutiveFailures >= m.maxRetries {
		if !m.circuitOpen {
			m.logger.Errorw("🔴 Circuit breaker OPENED - too many consecutive failures",
				"consecutive_failures", m.consecutiveFailures,
				"circuit_reset_after", m.circuitResetAfter,
			)
		}
		m.circuitOpen = true
		m.circuitOpenedAt = m.now()
	}
}

// RecordSuccess resets the backoff and closes the circuit
func (m *Manager) RecordSuccess() {
	m.mu.RLock()
	clean := m.consecutiveFailures == 0 && !m.circuitOpen
	m.mu.RUnlock()
	if clean {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Infow("✅ Connection restored, resetting backoff",
		"previous_consecutive_failures", m.consecutiveFailures,
	)
	if m.circuitOpen {
		m.logger.Info("🟢 Circuit breaker CLOSED")
	}

	m.currentBackoff = m.minBackoff
	m.consecutiveFailures = 0
	m.totalRecoveries++
	m.circuitOpen = false
	m.circuitOpenedAt = time.Time{}
	m.lastError = nil
}

// Healthy reports whether the circuit is closed
func (m *Manager) Healthy() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.circuitOpen {
		return errors.Wrapf(errors.ErrUnavailable, "circuit open after %d failures: %v", m.consecutiveFailures, m.lastError)
	}
	return nil
}

// Stats contains reconnection statistics
type Stats struct {
	ConsecutiveFailures int
	TotalRecoveries     int
	CurrentBackoff      time.Duration
	CircuitOpen         bool
	CircuitOpenedAt     time.Time
}

// GetStats returns the current state
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		ConsecutiveFailures: m.consecutiveFailures,
		TotalRecoveries:     m.totalRecoveries,
		CurrentBackoff:      m.currentBackoff,
		CircuitOpen:         m.circuitOpen,
		CircuitOpenedAt:     m.circuitOpenedAt,
	}
}

// ReconnectWithBackoff waits the current delay, then runs fn once and records the outcome
func (m *Manager) ReconnectWithBackoff(ctx context.Context, fn func(context.Context) error) error {
	if err := m.Wait(ctx); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		m.RecordFailure(err)
		return errors.Wrap(err, "reconnection failed")
	}

	m.RecordSuccess()
	return nil
}

// CalculateJitter adds up to jitterPercent of duration at random
func CalculateJitter(duration time.Duration, jitterPercent float64) time.Duration {
	if jitterPercent <= 0 || jitterPercent > 1 || duration <= 0 {
		return duration
	}
	return duration + time.Duration(rand.Float64()*jitterPercent*float64(duration))
}
