package evaluator

import (
	"context"
	"errors"
	"splan/internal/object"
	"splan/internal/util/future"
	"sync"
)

// branch is one par arm bound to its declaration index.
type branch func(ctx context.Context) (object.Value, error)

// branchScheduler runs a batch of par branches and returns their results in
// declaration order. On failure it returns the first error by declaration
// order, after every other branch has been cancelled and fully torn down.
// One dispatch table, two scheduling strategies behind this interface.
type branchScheduler interface {
	Run(ctx context.Context, branches []branch) ([]object.Value, error)
}

// poolScheduler is the worker-pool model: one goroutine per branch, the
// caller blocks until the final join. Nothing suspends except that join.
type poolScheduler struct{}

func (s *poolScheduler) Run(ctx context.Context, branches []branch) ([]object.Value, error) {
	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	futures := make([]*future.Future[object.Value], len(branches))
	for i, b := range branches {
		b := b
		futures[i] = future.New(func() (object.Value, error) {
			return b(branchCtx)
		})
	}

	results := make([]object.Value, len(branches))
	errs := make([]error, len(branches))
	for i, f := range futures {
		v, err := f.Await()
		if err != nil {
			errs[i] = err
			cancel() // fail fast, remaining branches see the cancellation
			continue
		}
		results[i] = v
	}
	if err := firstBranchError(errs); err != nil {
		return nil, err
	}
	return results, nil
}

// firstBranchError picks the winning error by declaration order. Failures
// that are only the echo of a sibling's cancellation never mask the genuine
// failure that triggered it.
func firstBranchError(errs []error) error {
	var firstCancelled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if isCancellation(err) {
			if firstCancelled == nil {
				firstCancelled = err
			}
			continue
		}
		return err
	}
	return firstCancelled
}

func isCancellation(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ee *Error
	return errors.As(err, &ee) && ee.Kind == CANCELLED
}

// taskScheduler is the cooperative model: branches are admitted through a
// counting semaphore so wide par forms cannot exhaust the system, and
// cancellation propagates through the shared context into every descendant
// before the first error is re-raised. The semaphore is scoped to one Run
// call: a branch holds its slot while it evaluates, and a nested par inside
// that branch admits its own children against a fresh semaphore, so an
// ancestor's held slot can never starve its descendants.
type taskScheduler struct {
	maxParallel int
}

func newTaskScheduler(maxParallel int) *taskScheduler {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	return &taskScheduler{maxParallel: maxParallel}
}

func (s *taskScheduler) Run(ctx context.Context, branches []branch) ([]object.Value, error) {
	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := make(chan struct{}, s.maxParallel)
	results := make([]object.Value, len(branches))
	errs := make([]error, len(branches))

	var wg sync.WaitGroup
	for i, b := range branches {
		wg.Add(1)
		go func(i int, b branch) {
			defer wg.Done()

			select {
			case limit <- struct{}{}:
				defer func() { <-limit }()
			case <-branchCtx.Done():
				errs[i] = branchCtx.Err()
				return
			}

			v, err := b(branchCtx)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = v
		}(i, b)
	}
	// Wait for full teardown: no branch may outlive the par call.
	wg.Wait()

	if err := firstBranchError(errs); err != nil {
		return nil, err
	}
	return results, nil
}
