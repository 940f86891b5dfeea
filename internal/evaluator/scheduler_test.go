package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"splan/internal/object"
)

func TestFirstBranchError(t *testing.T) {
	genuine := errors.New("genuine failure")
	echo := newError(CANCELLED, nil, nil, "evaluation cancelled")

	if err := firstBranchError([]error{nil, nil}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	// A cancellation echo at a lower index must not mask the real failure.
	if err := firstBranchError([]error{echo, genuine}); !errors.Is(err, genuine) {
		t.Fatalf("expected the genuine failure, got %v", err)
	}

	// With nothing but cancellations, the first one wins.
	if err := firstBranchError([]error{nil, echo}); !errors.Is(err, echo) {
		t.Fatalf("expected the cancellation, got %v", err)
	}
}

func TestIsCancellation(t *testing.T) {
	if !isCancellation(context.Canceled) {
		t.Fatal("context.Canceled should count as cancellation")
	}
	if !isCancellation(newError(CANCELLED, nil, nil, "stopped")) {
		t.Fatal("CANCELLED evaluation errors should count as cancellation")
	}
	if isCancellation(errors.New("ordinary")) {
		t.Fatal("ordinary errors are not cancellations")
	}
}

func TestSchedulersFailFast(t *testing.T) {
	boom := errors.New("branch two failed")

	for _, tc := range []struct {
		name  string
		sched branchScheduler
	}{
		{"pool", &poolScheduler{}},
		{"task", newTaskScheduler(4)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var sawCancel bool

			branches := []branch{
				func(ctx context.Context) (object.Value, error) {
					select {
					case <-ctx.Done():
						sawCancel = true
						return nil, ctx.Err()
					case <-time.After(2 * time.Second):
						return object.TRUE, nil
					}
				},
				func(ctx context.Context) (object.Value, error) {
					return nil, boom
				},
			}

			_, err := tc.sched.Run(context.Background(), branches)
			if !errors.Is(err, boom) {
				t.Fatalf("expected branch failure, got %v", err)
			}
			if !sawCancel {
				t.Fatal("sibling branch was not cancelled")
			}
		})
	}
}

func TestSchedulersPreserveOrder(t *testing.T) {
	for _, tc := range []struct {
		name  string
		sched branchScheduler
	}{
		{"pool", &poolScheduler{}},
		{"task", newTaskScheduler(2)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			branches := make([]branch, 5)
			for i := range branches {
				i := i
				branches[i] = func(ctx context.Context) (object.Value, error) {
					// Later branches finish first.
					time.Sleep(time.Duration(5-i) * time.Millisecond)
					return &object.Integer{Value: int64(i)}, nil
				}
			}

			results, err := tc.sched.Run(context.Background(), branches)
			if err != nil {
				t.Fatal(err)
			}
			for i, r := range results {
				got := r.(*object.Integer)
				if got.Value != int64(i) {
					t.Fatalf("result %d out of order: got %d", i, got.Value)
				}
			}
		})
	}
}
