package workers

import (
	"context"
	"sync"
	"time"

	"seasoncast/pkg/logger"
)

// Worker is a periodic job. The scheduler calls Run once at start and then every Interval.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
	Interval() time.Duration
	Enabled() bool
}

// HealthReporter is implemented by workers that keep run statistics.
// The scheduler feeds it after every iteration.
type HealthReporter interface {
	Health() WorkerHealth
	RecordRun(duration time.Duration)
	RecordError(err error, duration time.Duration)
}

// WorkerHealth is a snapshot of a worker's run history
type WorkerHealth struct {
	Enabled           bool
	LastRun           time.Time
	LastError         error
	RunCount          int64
	ErrorCount        int64
	ConsecutiveErrors int64
	AvgDuration       time.Duration
}

// BaseWorker carries the name, interval, logger and run statistics.
// Embed it and implement Run.
type BaseWorker struct {
	name     string
	interval time.Duration
	enabled  bool
	log      *logger.Logger

	mu    sync.Mutex
	stats WorkerHealth
	total time.Duration
}

// NewBaseWorker returns a base; a non-positive interval disables the worker
func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	on := enabled && interval > 0
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  on,
		log:      logger.Get().With("worker", name),
		stats:    WorkerHealth{Enabled: on},
	}
}

func (w *BaseWorker) Name() string            { return w.name }
func (w *BaseWorker) Interval() time.Duration { return w.interval }
func (w *BaseWorker) Enabled() bool           { return w.enabled }
func (w *BaseWorker) Log() *logger.Logger     { return w.log }

// Health returns a copy of the run statistics
func (w *BaseWorker) Health() WorkerHealth {
	w.mu.Lock()
	defer w.mu.Unlock()

	h := w.stats
	if h.RunCount > 0 {
		h.AvgDuration = w.total / time.Duration(h.RunCount)
	}
	return h
}

func (w *BaseWorker) RecordRun(duration time.Duration) {
	w.record(nil, duration)
}

func (w *BaseWorker) RecordError(err error, duration time.Duration) {
	w.record(err, duration)
}

func (w *BaseWorker) record(err error, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.LastRun = time.Now()
	w.stats.LastError = err
	w.stats.RunCount++
	w.total += duration

	if err == nil {
		w.stats.ConsecutiveErrors = 0
		return
	}
	w.stats.ErrorCount++
	w.stats.ConsecutiveErrors++
}
