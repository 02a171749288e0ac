package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid configuration",
			config: Config{Workers: 4},
		},
		{
			name:   "valid with rate limit",
			config: Config{Workers: 2, RateLimit: 100},
		},
		{
			name:    "zero workers",
			config:  Config{Workers: 0},
			wantErr: true,
		},
		{
			name:    "negative workers",
			config:  Config{Workers: -1},
			wantErr: true,
		},
		{
			name:    "negative rate limit",
			config:  Config{Workers: 1, RateLimit: -5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewPool(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, pool)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, pool)
		})
	}
}

func TestPoolProcessesAllTasks(t *testing.T) {
	pool, err := NewPool(Config{Workers: 4})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	const taskCount = 50

	var executed atomic.Int64
	for i := 0; i < taskCount; i++ {
		id := i
		err := pool.Submit(Task{
			ID: id,
			Execute: func(ctx context.Context) (Result, error) {
				executed.Add(1)
				return Result{ID: id, Data: id * 2}, nil
			},
		})
		require.NoError(t, err)
	}

	results, err := pool.Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(taskCount), executed.Load())
	assert.Len(t, results, taskCount)
}

func TestPoolPreservesSubmissionOrder(t *testing.T) {
	pool, err := NewPool(Config{Workers: 8})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	const taskCount = 40

	for i := 0; i < taskCount; i++ {
		id := i
		err := pool.Submit(Task{
			ID: id,
			Execute: func(ctx context.Context) (Result, error) {
				// Stagger completion so later submissions finish first.
				time.Sleep(time.Duration(taskCount-id) * time.Millisecond)
				return Result{ID: id, Data: id}, nil
			},
		})
		require.NoError(t, err)
	}

	results, err := pool.Wait()
	require.NoError(t, err)
	require.Len(t, results, taskCount)

	for i, result := range results {
		assert.Equal(t, i, result.ID, "result %d out of submission order", i)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const workers = 3

	pool, err := NewPool(Config{Workers: workers})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	var inFlight, peak atomic.Int32

	for i := 0; i < 30; i++ {
		id := i
		err := pool.Submit(Task{
			ID: id,
			Execute: func(ctx context.Context) (Result, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return Result{ID: id}, nil
			},
		})
		require.NoError(t, err)
	}

	_, err = pool.Wait()
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestPoolReportsTaskFailure(t *testing.T) {
	pool, err := NewPool(Config{Workers: 2})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(Task{
		ID: 7,
		Execute: func(ctx context.Context) (Result, error) {
			return Result{}, fmt.Errorf("boom")
		},
	}))

	_, err = pool.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task 7 failed")
}

func TestPoolSubmitBeforeStart(t *testing.T) {
	pool, err := NewPool(Config{Workers: 1})
	require.NoError(t, err)

	err = pool.Submit(Task{ID: 1})
	assert.Error(t, err)
}

func TestPoolDoubleStart(t *testing.T) {
	pool, err := NewPool(Config{Workers: 1})
	require.NoError(t, err)

	require.NoError(t, pool.Start(context.Background()))
	assert.Error(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop())
}

func TestPoolStats(t *testing.T) {
	pool, err := NewPool(Config{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, StatusStopped, pool.Stats().Status)

	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 5; i++ {
		id := i
		require.NoError(t, pool.Submit(Task{
			ID: id,
			Execute: func(ctx context.Context) (Result, error) {
				return Result{ID: id}, nil
			},
		}))
	}

	_, err = pool.Wait()
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, 5, stats.CompletedTasks)
	assert.Equal(t, 0, stats.FailedTasks)
}

func TestPoolStopIsIdempotent(t *testing.T) {
	pool, err := NewPool(Config{Workers: 1})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Stop())
	require.NoError(t, pool.Stop())
}
