/*
Package worker provides a bounded worker pool for concurrent task processing
with rate limiting and context cancellation support.

The pool caps the number of in-flight tasks at the configured worker count
and hands back results in submission order, regardless of completion order.

Basic usage:

	pool, err := worker.NewPool(worker.Config{
		Workers:   4,
		RateLimit: 10, // 10 ops/sec, 0 for unlimited
	})

	ctx := context.Background()
	pool.Start(ctx)

	pool.Submit(worker.Task{
		ID: 1,
		Execute: func(ctx context.Context) (worker.Result, error) {
			return worker.Result{ID: 1, Data: "processed"}, nil
		},
	})

	results, err := pool.Wait()
*/
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Task represents a unit of work to be processed by the worker pool
type Task struct {
	// ID uniquely identifies the task; it is echoed on the Result
	ID int

	// Execute is the function that performs the actual work.
	// It receives a context for cancellation support.
	Execute func(context.Context) (Result, error)
}

// Result represents the output of a processed task
type Result struct {
	// ID matches the task ID that produced this result
	ID int

	// Data holds the actual result data
	Data interface{}

	// order is used internally to maintain submission order
	order int
}

// Config holds the configuration for the worker pool
type Config struct {
	// Workers is the number of concurrent workers
	Workers int

	// RateLimit is the maximum number of operations per second (0 for unlimited)
	RateLimit int
}

// Pool defines the interface for a worker pool
type Pool interface {
	// Start initializes and starts the worker pool
	Start(context.Context) error

	// Submit adds a task to the pool for processing
	Submit(Task) error

	// Wait blocks until all submitted tasks are processed and returns
	// the results in submission order
	Wait() ([]Result, error)

	// Stats returns current statistics about the pool
	Stats() Stats

	// Stop gracefully shuts down the pool
	Stop() error
}

type pool struct {
	config        Config
	tasks         chan orderedTask
	results       chan Result
	errors        chan error
	limiter       *rate.Limiter
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	closeTasks    sync.Once
	closeResults  sync.Once
	collected     []Result
	collectDone   chan struct{}
	mu            sync.Mutex
	started       bool
	stopped       bool
	startTime     time.Time
	completed     atomic.Int64
	failed        atomic.Int64
	activeWorkers atomic.Int32
	taskOrder     int
	orderMu       sync.Mutex
}

type orderedTask struct {
	Task
	order int
}

// NewPool creates a new worker pool with the given configuration
func NewPool(config Config) (Pool, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &pool{
		config:  config,
		tasks:   make(chan orderedTask, config.Workers*2),
		results: make(chan Result, config.Workers*2),
		errors:  make(chan error, config.Workers),
		limiter: limiter,
	}, nil
}

func validateConfig(config Config) error {
	if config.Workers <= 0 {
		return fmt.Errorf("number of workers must be positive")
	}
	if config.RateLimit < 0 {
		return fmt.Errorf("rate limit must be non-negative")
	}
	return nil
}

// Start initializes and starts the worker pool
func (p *pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("pool already started")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true
	p.startTime = time.Now()

	// Results are drained as they arrive so workers never block on a full
	// results buffer, no matter how many tasks are queued ahead of Wait.
	p.collectDone = make(chan struct{})
	go func() {
		for result := range p.results {
			p.collected = append(p.collected, result)
		}
		close(p.collectDone)
	}()

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return nil
}

// Submit adds a task to the pool for processing
func (p *pool) Submit(task Task) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if !started {
		return fmt.Errorf("pool not started")
	}

	p.orderMu.Lock()
	order := p.taskOrder
	p.taskOrder++
	p.orderMu.Unlock()

	select {
	case <-p.ctx.Done():
		return fmt.Errorf("pool is shutting down: %w", p.ctx.Err())
	case p.tasks <- orderedTask{Task: task, order: order}:
		return nil
	}
}

// Wait blocks until all submitted tasks are processed. Results come back
// sorted by submission order, not completion order.
func (p *pool) Wait() ([]Result, error) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil, fmt.Errorf("pool not started")
	}
	p.mu.Unlock()

	p.closeTasks.Do(func() { close(p.tasks) })
	p.wg.Wait()

	p.closeResults.Do(func() { close(p.results) })
	<-p.collectDone

	results := p.collected
	sort.Slice(results, func(i, j int) bool {
		return results[i].order < results[j].order
	})

	select {
	case err := <-p.errors:
		return nil, err
	default:
		return results, nil
	}
}

// Stop gracefully shuts down the pool
func (p *pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || !p.started {
		p.stopped = true
		return nil
	}

	p.stopped = true
	p.cancel()
	p.closeTasks.Do(func() { close(p.tasks) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.closeResults.Do(func() { close(p.results) })
		<-p.collectDone
		return nil
	case <-time.After(500 * time.Millisecond):
		return fmt.Errorf("shutdown timed out")
	}
}

// Stats returns current statistics about the pool
func (p *pool) Stats() Stats {
	p.mu.Lock()
	started := p.started
	stopped := p.stopped
	startTime := p.startTime
	p.mu.Unlock()

	active := int(p.activeWorkers.Load())
	queued := len(p.tasks)

	status := StatusStopped
	if started && !stopped {
		if active > 0 || queued > 0 {
			status = StatusProcessing
		} else {
			status = StatusIdle
		}
	}

	var uptime time.Duration
	if started {
		uptime = time.Since(startTime)
	}

	return Stats{
		ActiveWorkers:  active,
		QueuedTasks:    queued,
		CompletedTasks: int(p.completed.Load()),
		FailedTasks:    int(p.failed.Load()),
		Status:         status,
		Uptime:         uptime,
	}
}

// worker drains the task channel until it is closed or the context ends
func (p *pool) worker() {
	defer p.wg.Done()

	for ot := range p.tasks {
		p.activeWorkers.Add(1)

		if p.limiter != nil {
			if err := p.limiter.Wait(p.ctx); err != nil {
				p.activeWorkers.Add(-1)
				p.failed.Add(1)

				select {
				case p.errors <- fmt.Errorf("rate limiter error: %w", err):
				default:
				}
				return
			}
		}

		result, err := ot.Execute(p.ctx)
		result.order = ot.order

		p.activeWorkers.Add(-1)

		if err != nil {
			p.failed.Add(1)

			select {
			case p.errors <- fmt.Errorf("task %d failed: %w", ot.ID, err):
			default:
				// Error channel is full, continue processing
			}
			continue
		}

		p.completed.Add(1)

		select {
		case <-p.ctx.Done():
			return
		case p.results <- result:
		}
	}
}
