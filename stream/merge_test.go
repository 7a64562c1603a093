package stream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	apperrors "github.com/kbukum/flowkit/errors"
)

func TestMergeForwardsEverything(t *testing.T) {
	ctx := testContext(t)
	got, err := Collect(ctx, Merge(delayed(unit/4, 1, 3, 5), delayed(unit/4, 2, 4), Empty[int]()))
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(got)
	assertValues(t, got, []int{1, 2, 3, 4, 5})
}

func TestMergeKeepsPerSourceOrder(t *testing.T) {
	ctx := testContext(t)
	got, err := Collect(ctx, Merge(delayed(unit/4, "a1", "a2", "a3"), delayed(unit/4, "b1", "b2")))
	if err != nil {
		t.Fatal(err)
	}
	var as, bs []string
	for _, v := range got {
		if v[0] == 'a' {
			as = append(as, v)
		} else {
			bs = append(bs, v)
		}
	}
	assertValues(t, as, []string{"a1", "a2", "a3"})
	assertValues(t, bs, []string{"b1", "b2"})
}

func TestMergeWallTime(t *testing.T) {
	ds := newTestDispatchers(t)
	ctx := testContext(t)

	start := time.Now()
	got, err := Collect(ctx, Merge(delayed(unit, 1, 2), delayed(unit, 3, 4), delayed(unit, 5, 6)), On(ds.Main))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 6 {
		t.Errorf("expected 6 values, got %v", got)
	}
	if elapsed := time.Since(start); elapsed >= 4*unit {
		t.Errorf("expected the sources to run concurrently, took %v", elapsed)
	}
}

// at emits name+offset at each offset, measured in ticks from the start of
// the subscription.
func at(tick time.Duration, name string, offsets ...int) *Source[string] {
	return New(func(ctx context.Context, emit Emit[string]) error {
		start := time.Now()
		for _, o := range offsets {
			if err := Delay(ctx, time.Until(start.Add(time.Duration(o)*tick))); err != nil {
				return err
			}
			if err := emit(fmt.Sprintf("%s%d", name, o)); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestMergeTimeline(t *testing.T) {
	ds := newTestDispatchers(t)
	tick := unit / 2
	want := []string{"a0", "b5", "b10", "a15", "a25", "b25", "a30", "b35"}

	tests := []struct {
		name string
		d    Dispatcher
		src  func() *Source[string]
	}{
		{"merge on computation", ds.Computation, func() *Source[string] {
			return Merge(at(tick, "a", 0, 15, 25, 30), at(tick, "b", 5, 10, 25, 35))
		}},
		{"merge on main", ds.Main, func() *Source[string] {
			return Merge(at(tick, "a", 0, 15, 25, 30), at(tick, "b", 5, 10, 25, 35))
		}},
		{"flatten merge", ds.Computation, func() *Source[string] {
			return FlattenMerge(Of(at(tick, "a", 0, 15, 25, 30), at(tick, "b", 5, 10, 25, 35)))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			got, err := Collect(testContext(t), tt.src(), On(tt.d))
			elapsed := time.Since(start)
			if err != nil {
				t.Fatal(err)
			}
			// equal times keep declaration order
			assertValues(t, got, want)
			if elapsed < 35*tick || elapsed >= 45*tick {
				t.Errorf("took %v, want about %v", elapsed, 35*tick)
			}
		})
	}
}

func TestMergeFailure(t *testing.T) {
	ctx := testContext(t)
	_, err := Collect(ctx, Merge(Never[int](), delayed(unit/2, 1), Fail[int](errors.New("socket closed"))))
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeCombinatorFailure {
		t.Fatalf("expected COMBINATOR_FAILURE, got %v", err)
	}
	if appErr.Details["combinator"] != "merge" {
		t.Errorf("expected combinator merge, got %v", appErr.Details["combinator"])
	}
	if !apperrors.HasCode(appErr.Cause, apperrors.ErrCodeSourceFailure) {
		t.Errorf("expected the branch failure as cause, got %v", appErr.Cause)
	}
}

func TestMergeNothing(t *testing.T) {
	ctx := testContext(t)
	got, err := Collect(ctx, Merge[int]())
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty completion, got %v, %v", got, err)
	}
}
