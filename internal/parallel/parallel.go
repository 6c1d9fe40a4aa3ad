// Package parallel distributes a work collection across a bounded pool of
// workers.
//
// Every call is a full barrier: it returns only after each item has been
// handled by exactly one worker. Items are not ordered. A collection of at
// most one item runs inline without a pool.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
)

// Executor runs work with a fixed worker budget.
type Executor struct {
	workers int
	pools   atomic.Int64
}

// New returns an executor with the given number of workers. Values below
// one are treated as one; budgets are validated with the configuration.
func New(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{workers: workers}
}

// FromBudget resolves a configured worker budget into an executor.
func FromBudget(b config.WorkerBudget) *Executor {
	return New(b.Resolve())
}

// Workers returns the worker budget.
func (e *Executor) Workers() int { return e.workers }

// PoolsSpawned reports how many worker pools this executor has started.
func (e *Executor) PoolsSpawned() int64 { return e.pools.Load() }

// Run calls fn once for each index in [0, n). The first error cancels the
// context passed to fn, stops the dispatch of remaining items and is
// returned once all running items have finished.
func (e *Executor) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return call(ctx, fn, 0)
	}

	workers := min(e.workers, n)
	e.pools.Add(1)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting worker pool.", "workers", workers, "items", n)

	ready := make(chan int, n)
	for i := 0; i < n; i++ {
		ready <- i
	}
	close(ready)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(workerID int) {
			defer wg.Done()
			for i := range ready {
				if runCtx.Err() != nil {
					continue
				}
				if err := call(runCtx, fn, i); err != nil {
					logger.Debug("Worker item failed.", "workerID", workerID, "item", i, "error", err)
					once.Do(func() { firstErr = err })
					cancel()
				}
			}
		}(w)
	}
	wg.Wait()
	logger.Debug("Worker pool finished.", "workers", workers, "items", n)

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func call(ctx context.Context, fn func(ctx context.Context, i int) error, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing item %d: %v", i, r)
		}
	}()
	return fn(ctx, i)
}

// Each runs fn for every item.
func Each[T any](ctx context.Context, e *Executor, items []T, fn func(ctx context.Context, item T) error) error {
	return e.Run(ctx, len(items), func(ctx context.Context, i int) error {
		return fn(ctx, items[i])
	})
}

// Map runs fn for every item and returns the results in item order. Each
// worker writes only its own slot; the caller reads the slice after the
// barrier. On error the partial results are discarded.
func Map[T, R any](ctx context.Context, e *Executor, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	err := e.Run(ctx, len(items), func(ctx context.Context, i int) error {
		r, err := fn(ctx, items[i])
		if err != nil {
			return err
		}
		results[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ErrNotRun marks an item that was never dispatched because the context
// was cancelled.
var ErrNotRun = errors.New("item was not run")

// Outcome is the isolated result of one item.
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
}

// Collect runs fn for every item without letting one item's failure stop
// the others. Every item gets an Outcome, in item order.
func Collect[T, R any](ctx context.Context, e *Executor, items []T, fn func(ctx context.Context, item T) (R, error)) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))
	for i := range outcomes {
		outcomes[i] = Outcome[R]{Index: i, Err: ErrNotRun}
	}
	_ = e.Run(ctx, len(items), func(ctx context.Context, i int) error {
		outcomes[i].Value, outcomes[i].Err = callValue(ctx, fn, items[i], i)
		return nil
	})
	return outcomes
}

func callValue[T, R any](ctx context.Context, fn func(ctx context.Context, item T) (R, error), item T, i int) (r R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while processing item %d: %v", i, p)
		}
	}()
	return fn(ctx, item)
}
