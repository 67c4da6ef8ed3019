package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPoolConfig configures the worker pool.
type WorkerPoolConfig struct {
	MaxConcurrent int // Maximum concurrent workers (default: 4)
}

// DefaultWorkerPoolConfig returns sensible defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		MaxConcurrent: 4,
	}
}

// WorkerPool runs work items on a fixed number of workers. Each worker pulls
// the next pending item, so a pool of one executes items sequentially in
// submission order.
type WorkerPool struct {
	config WorkerPoolConfig
	logger *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultWorkerPoolConfig().MaxConcurrent
	}
	return &WorkerPool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int {
	return p.config.MaxConcurrent
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	Index      int // position of the item in the submitted slice
	ID         string
	Result     T
	Err        error
	Dispatched bool // false when the pool stopped before the item started
}

// Process executes all work items with bounded parallelism and returns one
// result per item, indexed by submission position.
//
// Cancelling ctx stops dispatch: items not yet started are returned with
// Dispatched=false and Err set to the cancellation cause. Items already
// started keep running under a context detached from ctx's cancellation, so
// they end on their own timeouts.
func Process[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	execCtx := context.WithoutCancel(ctx)
	next := make(chan int)
	resultsChan := make(chan WorkResult[T], len(items))

	go func() {
		defer close(next)
		for i := range items {
			select {
			case next <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	workers := min(pool.config.MaxConcurrent, len(items))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				item := items[i]
				if ctx.Err() != nil {
					resultsChan <- WorkResult[T]{Index: i, ID: item.ID, Err: context.Cause(ctx)}
					continue
				}
				result, err := item.Execute(execCtx)
				resultsChan <- WorkResult[T]{
					Index:      i,
					ID:         item.ID,
					Result:     result,
					Err:        err,
					Dispatched: true,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]WorkResult[T], len(items))
	filled := make([]bool, len(items))
	completed := 0
	for result := range resultsChan {
		results[result.Index] = result
		filled[result.Index] = true
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	skipped := 0
	for i := range results {
		if !filled[i] {
			results[i] = WorkResult[T]{Index: i, ID: items[i].ID, Err: context.Cause(ctx)}
		}
		if !results[i].Dispatched {
			skipped++
		}
	}
	if skipped > 0 {
		pool.logger.Info("Dispatch stopped before all items started",
			zap.Int("skipped", skipped),
			zap.Int("total", len(items)),
			zap.Error(context.Cause(ctx)))
	}

	return results
}
