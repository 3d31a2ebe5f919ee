// Package workerpool provides a bounded pool for running batches of small
// independent tasks with per-task retry and aggregate result reporting.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of work.
type Task struct {
	ID      string
	Payload interface{}
}

// Result is the outcome of one task. A batch continues past individual
// failures; callers inspect results for the aggregate outcome.
type Result struct {
	TaskID  string
	Success bool
	Err     error
}

// WorkerFunc processes one task.
type WorkerFunc func(ctx context.Context, task *Task) error

// Config holds pool configuration.
type Config struct {
	// Workers is the number of concurrent workers.
	Workers int
	// MaxRetries is the maximum number of retries for failed tasks.
	MaxRetries int
	// RetryDelay is the base delay between retries (grows linearly).
	RetryDelay time.Duration
}

// DefaultConfig returns defaults suitable for store maintenance batches.
func DefaultConfig() Config {
	return Config{
		Workers:    8,
		MaxRetries: 2,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Pool runs task batches with bounded concurrency.
type Pool struct {
	config     Config
	workerFunc WorkerFunc
	logger     *zap.Logger

	tasksRun    int64
	tasksFailed int64
}

// New creates a pool.
func New(cfg Config, fn WorkerFunc, logger *zap.Logger) (*Pool, error) {
	if fn == nil {
		return nil, fmt.Errorf("worker function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}

	return &Pool{
		config:     cfg,
		workerFunc: fn,
		logger:     logger,
	}, nil
}

// Run processes all tasks and blocks until every result is in. Results are
// returned in task order.
func (p *Pool) Run(ctx context.Context, tasks []*Task) []Result {
	results := make([]Result, len(tasks))

	sem := make(chan struct{}, p.config.Workers)
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, task *Task) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.runTask(ctx, task)
		}(i, task)
	}

	wg.Wait()
	return results
}

// runTask executes one task with retries.
func (p *Pool) runTask(ctx context.Context, task *Task) Result {
	atomic.AddInt64(&p.tasksRun, 1)

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		lastErr = p.workerFunc(ctx, task)
		if lastErr == nil {
			return Result{TaskID: task.ID, Success: true}
		}

		if attempt < p.config.MaxRetries {
			p.logger.Debug("retrying task",
				zap.String("task_id", task.ID),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))

			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(p.config.RetryDelay * time.Duration(attempt+1)):
				continue
			}
			break
		}
	}

	atomic.AddInt64(&p.tasksFailed, 1)
	p.logger.Warn("task failed",
		zap.String("task_id", task.ID),
		zap.Error(lastErr))
	return Result{TaskID: task.ID, Success: false, Err: lastErr}
}

// Stats holds cumulative pool statistics.
type Stats struct {
	TasksRun    int64
	TasksFailed int64
}

// Stats returns cumulative statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		TasksRun:    atomic.LoadInt64(&p.tasksRun),
		TasksFailed: atomic.LoadInt64(&p.tasksFailed),
	}
}
