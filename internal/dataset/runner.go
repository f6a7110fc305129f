package dataset

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

// TaskFunc processes one partition.
type TaskFunc func(ctx context.Context, partition int) error

// Runner executes one task per partition.
// Tasks never share mutable state; a Runner only decides scheduling and
// how partition failures propagate to the caller.
type Runner interface {
	// Name returns the runner name for logging.
	Name() string

	// Run executes fn for partitions 0..n-1 and blocks until all are done.
	// Failures are returned as *domain.PartitionError values.
	Run(ctx context.Context, n int, fn TaskFunc) error

	// Limit returns a runner using at most workers concurrent tasks.
	Limit(workers int) Runner
}

// Ensure runners implement the interface.
var (
	_ Runner = SequentialRunner{}
	_ Runner = PoolRunner{}
)

// SequentialRunner executes partitions one after another in-process.
type SequentialRunner struct {
	// FailFast stops at the first failing partition.
	FailFast bool
}

// Name returns the runner name.
func (r SequentialRunner) Name() string { return "sequential" }

// Limit returns the runner unchanged.
func (r SequentialRunner) Limit(int) Runner { return r }

// Run executes every partition in order.
func (r SequentialRunner) Run(ctx context.Context, n int, fn TaskFunc) error {
	var errs []error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := fn(ctx, i); err != nil {
			errs = append(errs, &domain.PartitionError{Partition: i, Err: err})
			if r.FailFast {
				break
			}
		}
	}
	return errors.Join(errs...)
}

// DefaultWorkers is the worker count of a PoolRunner created with zero workers.
const DefaultWorkers = 4

// PoolRunner executes partitions on a bounded pool of goroutines.
type PoolRunner struct {
	// Workers bounds concurrent partition tasks.
	Workers int

	// FailFast cancels outstanding partitions after the first failure.
	// Otherwise every partition runs and failures are joined.
	FailFast bool
}

// NewPoolRunner creates a pool runner.
func NewPoolRunner(workers int, failFast bool) PoolRunner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return PoolRunner{Workers: workers, FailFast: failFast}
}

// Name returns the runner name.
func (r PoolRunner) Name() string { return "pool" }

// Limit returns a pool with at most workers goroutines.
func (r PoolRunner) Limit(workers int) Runner {
	if workers > 0 && workers < r.workers() {
		r.Workers = workers
	}
	return r
}

func (r PoolRunner) workers() int {
	if r.Workers <= 0 {
		return DefaultWorkers
	}
	return r.Workers
}

// Run executes partitions concurrently.
func (r PoolRunner) Run(ctx context.Context, n int, fn TaskFunc) error {
	if r.FailFast {
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(r.workers())
		for i := 0; i < n; i++ {
			partition := i
			eg.Go(func() error {
				if err := fn(gctx, partition); err != nil {
					return &domain.PartitionError{Partition: partition, Err: err}
				}
				return nil
			})
		}
		return eg.Wait()
	}

	// Each task owns its slot in errs.
	errs := make([]error, n)
	var eg errgroup.Group
	eg.SetLimit(r.workers())
	for i := 0; i < n; i++ {
		partition := i
		eg.Go(func() error {
			if err := fn(ctx, partition); err != nil {
				errs[partition] = &domain.PartitionError{Partition: partition, Err: err}
			}
			return nil
		})
	}
	_ = eg.Wait()
	return errors.Join(errs...)
}
