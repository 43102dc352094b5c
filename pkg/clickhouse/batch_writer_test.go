package clickhouse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]int
	err     error
}

func (r *recorder) flush(ctx context.Context, batch []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, batch)
	return nil
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func TestBatchWriter_FlushOnMaxSize(t *testing.T) {
	rec := &recorder{}
	bw := NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc:    rec.flush,
		TableName:    "test_table",
		MaxBatchSize: 3,
		MaxAge:       10 * time.Second,
	})

	ctx := context.Background()
	require.NoError(t, bw.Add(ctx, 1))
	require.NoError(t, bw.Add(ctx, 2))
	assert.Equal(t, 2, bw.BufferSize())
	require.NoError(t, bw.Add(ctx, 3))

	rec.mu.Lock()
	require.Len(t, rec.batches, 1)
	assert.Equal(t, []int{1, 2, 3}, rec.batches[0])
	rec.mu.Unlock()

	assert.Equal(t, 0, bw.BufferSize())
	assert.Equal(t, uint64(3), bw.GetStats().Flushed)
}

func TestBatchWriter_FlushOnTimer(t *testing.T) {
	rec := &recorder{}
	bw := NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc:    rec.flush,
		TableName:    "test_table",
		MaxBatchSize: 100,
		MaxAge:       50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	require.NoError(t, bw.Add(ctx, 1))
	require.NoError(t, bw.Add(ctx, 2))

	assert.Eventually(t, func() bool { return rec.total() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, bw.Stop(context.Background()))
}

func TestBatchWriter_GracefulStopFlushesRemainder(t *testing.T) {
	rec := &recorder{}
	bw := NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc:    rec.flush,
		TableName:    "test_table",
		MaxBatchSize: 100,
		MaxAge:       time.Hour,
	})

	ctx := context.Background()
	bw.Start(ctx)
	for i := 0; i < 5; i++ {
		require.NoError(t, bw.Add(ctx, i))
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, bw.Stop(stopCtx))

	assert.Equal(t, 5, rec.total())
	assert.False(t, bw.GetStats().Running)
	require.NoError(t, bw.Stop(stopCtx), "second stop is a no-op")
}

func TestBatchWriter_FailedFlushIsDropped(t *testing.T) {
	rec := &recorder{err: errors.New("clickhouse down")}
	bw := NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc:    rec.flush,
		TableName:    "test_table",
		MaxBatchSize: 2,
	})

	ctx := context.Background()
	require.NoError(t, bw.Add(ctx, 1))
	assert.Error(t, bw.Add(ctx, 2))

	stats := bw.GetStats()
	assert.Equal(t, uint64(2), stats.Dropped)
	assert.Equal(t, 0, stats.BufferSize)
}

func TestBatchWriter_ConcurrentAdds(t *testing.T) {
	rec := &recorder{}
	bw := NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc:    rec.flush,
		TableName:    "test_table",
		MaxBatchSize: 7,
		MaxAge:       time.Hour,
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = bw.Add(ctx, i)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, bw.Flush(ctx))

	assert.Equal(t, 1000, rec.total())
}
