// Package pool implements the two-level worker scheduling model from
// spec.md §5 (C6): a process-wide pool of OS worker threads
// (FIBER_THREADS) cooperatively running many more lightweight tasks
// (capped at NUM_THREADS in flight), grounded on
// original_source/csrc/ThreadPool.h's boost::fibers shared_work pool.
// Go's own goroutine scheduler already multiplexes M:N, so this package
// models the spec's two explicit caps with golang.org/x/sync's
// errgroup (OS-worker-count limiter) and semaphore (in-flight task cap)
// rather than hand-rolling a fiber scheduler — following the teacher's
// preference (searcher/mcts.go's iterate/countdown) for a goroutine pool
// driven by a bounded channel of work, generalized to the pack's
// x/sync primitives.
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent work to at most `workers` OS-thread-equivalent
// goroutines, while allowing up to `maxInFlight` logical tasks to be
// queued/suspended at once — matching FIBER_THREADS vs NUM_THREADS.
type Pool struct {
	workers     int
	maxInFlight int64
	sem         *semaphore.Weighted
}

// New constructs a Pool. workers bounds the errgroup's concurrency
// (FIBER_THREADS); maxInFlight bounds the semaphore (NUM_THREADS).
func New(workers, maxInFlight int) *Pool {
	return &Pool{
		workers:     workers,
		maxInFlight: int64(maxInFlight),
		sem:         semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// Run submits tasks and blocks until every task has completed, never
// running more than `workers` concurrently and never admitting more than
// `maxInFlight` tasks at once. A task's error short-circuits the
// remaining tasks via ctx cancellation, matching errgroup's fail-fast
// semantics — the cooperative "frame_bail" cancellation model from
// spec.md §5, generalized to plain Go errors instead of a shared flag.
func (p *Pool) Run(ctx context.Context, tasks []func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, task := range tasks {
		task := task
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			return task(ctx)
		})
	}
	return g.Wait()
}

// Batches splits n items into ceil(n/batchSize) index ranges [lo, hi),
// used by SearchBot.doSearch's per-batch accumulate/prune phases
// (spec.md §5's barrier-cycling-every-num_threads-sized-batch model).
func Batches(n, batchSize int) [][2]int {
	if batchSize <= 0 {
		batchSize = n
	}
	var out [][2]int
	for lo := 0; lo < n; lo += batchSize {
		hi := lo + batchSize
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}
