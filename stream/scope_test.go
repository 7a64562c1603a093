package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestScopeCancelStopsEverything(t *testing.T) {
	ctx := testContext(t)
	scope := NewScope(ctx, ScopeName("users-screen"))

	var callbacks atomic.Int32
	c := Consumer[int]{
		OnError:    func(error) { callbacks.Add(1) },
		OnComplete: func() { callbacks.Add(1) },
	}
	subs := []*Subscription{
		Launch(scope, Never[int](), c),
		Launch(scope, Interval(unit/4), Consumer[int64]{}),
	}
	if scope.Active() != 2 {
		t.Errorf("expected 2 active subscriptions, got %d", scope.Active())
	}

	scope.Cancel()
	if err := scope.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	for _, sub := range subs {
		if sub.State() != Cancelled {
			t.Errorf("expected cancelled, got %s", sub.State())
		}
	}
	if callbacks.Load() != 0 {
		t.Error("expected no terminal callbacks on scope cancel")
	}
	waitFor(t, "scope to empty", func() bool { return scope.Active() == 0 })

	late := Launch(scope, Of(1), Consumer[int]{})
	_ = late.Wait(ctx)
	if late.State() != Cancelled {
		t.Errorf("expected a launch into a cancelled scope to be cancelled, got %s", late.State())
	}
}

func TestScopeGo(t *testing.T) {
	ds := newTestDispatchers(t)
	ctx := testContext(t)
	scope := NewScope(ctx, ScopeOn(ds.Main))
	defer scope.Cancel()

	var ran atomic.Value
	task := scope.Go(func(ctx context.Context) error {
		ran.Store(CurrentDispatcher(ctx).Name())
		return nil
	})
	failing := scope.Go(func(context.Context) error { return errors.New("sync failed") })

	if err := scope.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if task.State() != Completed || ran.Load() != MainName {
		t.Errorf("expected the task to complete on main, got %s on %v", task.State(), ran.Load())
	}
	if failing.State() != Failed {
		t.Errorf("expected the failing task to fail, got %s", failing.State())
	}
}

func TestScopeFollowsParentContext(t *testing.T) {
	parent, cancel := context.WithCancel(testContext(t))
	scope := NewScope(parent)
	sub := Launch(scope, Never[int](), Consumer[int]{})

	cancel()
	_ = sub.Wait(context.Background())
	if sub.State() != Cancelled {
		t.Errorf("expected cancellation through the parent, got %s", sub.State())
	}
	if scope.Context().Err() == nil {
		t.Error("expected the scope context to be done")
	}
}
