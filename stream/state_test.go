package stream

import (
	"context"
	"testing"
	"time"
)

// endsWith reports whether the last recorded value is want.
func endsWith[T comparable](r *recorder[T], want T) func() bool {
	return func() bool {
		got := r.snapshot()
		return len(got) > 0 && got[len(got)-1] == want
	}
}

func TestStateDistinctUntilChanged(t *testing.T) {
	ctx := testContext(t)
	s := NewState(0)

	r := &recorder[int]{}
	sub := s.Source().Subscribe(ctx, r.consumer())
	defer sub.Cancel()
	waitFor(t, "initial value", endsWith(r, 0))

	steps := []struct {
		value   int
		changed bool
	}{
		{1, true},
		{1, false},
		{2, true},
	}
	for _, step := range steps {
		changed, err := s.Set(ctx, step.value)
		if err != nil {
			t.Fatal(err)
		}
		if changed != step.changed {
			t.Errorf("Set(%d) reported %v, want %v", step.value, changed, step.changed)
		}
		waitFor(t, "delivery", endsWith(r, step.value))
	}
	time.Sleep(unit)
	assertValues(t, r.snapshot(), []int{0, 1, 2})
	if s.Value() != 2 {
		t.Errorf("expected value 2, got %d", s.Value())
	}
}

func TestStateSetTwiceFromSubscriber(t *testing.T) {
	ctx := testContext(t)
	s := NewState(0)

	r := &recorder[int]{}
	setErrs := make(chan error, 2)
	sub := s.Source().Subscribe(ctx, Consumer[int]{
		OnValue: func(ctx context.Context, v int) {
			r.add(v)
			if v != 1 {
				return
			}
			_, err := s.Set(ctx, 2)
			setErrs <- err
			_, err = s.Set(ctx, 3)
			setErrs <- err
		},
	})
	defer sub.Cancel()
	waitFor(t, "initial value", endsWith(r, 0))

	if _, err := s.Set(ctx, 1); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		select {
		case err := <-setErrs:
			if err != nil {
				t.Fatal(err)
			}
		case <-time.After(time.Second):
			t.Fatal("Set from inside the subscriber did not return")
		}
	}
	waitFor(t, "latest value", endsWith(r, 3))

	// 2 was replaced by 3 before the subscriber was free again
	assertValues(t, r.snapshot(), []int{0, 1, 3})
	if s.Value() != 3 || sub.State() != Active {
		t.Errorf("value %d state %s, want 3 active", s.Value(), sub.State())
	}
}

func TestStateNewSubscriberGetsCurrentValue(t *testing.T) {
	ctx := testContext(t)
	s := NewState("idle")
	if _, err := s.Set(ctx, "loading"); err != nil {
		t.Fatal(err)
	}
	got, err := Collect(ctx, Take(s.Source(), 1))
	if err != nil {
		t.Fatal(err)
	}
	assertValues(t, got, []string{"loading"})
}

func TestStateSlowSubscriberSkipsToLatest(t *testing.T) {
	ctx := testContext(t)
	s := NewState(0)
	r := &recorder[int]{}
	sub := s.Source().Subscribe(ctx, Consumer[int]{
		OnValue: func(ctx context.Context, v int) {
			r.add(v)
			_ = Delay(ctx, unit)
		},
	})
	defer sub.Cancel()
	waitFor(t, "initial value", endsWith(r, 0))

	start := time.Now()
	for i := 1; i <= 5; i++ {
		if _, err := s.Set(ctx, i); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed >= unit {
		t.Errorf("setters waited %v for a slow subscriber", elapsed)
	}
	waitFor(t, "latest value", endsWith(r, 5))

	got := r.snapshot()
	if got[0] != 0 {
		t.Errorf("expected the initial value first, got %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Errorf("expected increasing values, got %v", got)
		}
	}
	if len(got) == 6 {
		t.Errorf("expected a slow subscriber to skip values, got %v", got)
	}
}

func TestStateUpdateAndCompareAndSet(t *testing.T) {
	ctx := testContext(t)
	s := NewState(10)

	changed, err := s.Update(ctx, func(v int) int { return v + 5 })
	if err != nil || !changed || s.Value() != 15 {
		t.Fatalf("expected Update to move 10 to 15, got %d (%v, %v)", s.Value(), changed, err)
	}
	changed, _ = s.Update(ctx, func(v int) int { return v })
	if changed {
		t.Error("expected an identity update to report no change")
	}

	ok, _ := s.CompareAndSet(ctx, 10, 20)
	if ok || s.Value() != 15 {
		t.Errorf("expected CompareAndSet with a stale expectation to fail, value %d", s.Value())
	}
	ok, _ = s.CompareAndSet(ctx, 15, 20)
	if !ok || s.Value() != 20 {
		t.Errorf("expected CompareAndSet to succeed, value %d", s.Value())
	}
}

func TestStateFuncEquality(t *testing.T) {
	ctx := testContext(t)
	type user struct {
		ID   string
		Tags []string
	}
	s := NewStateFunc(user{ID: "a"}, func(x, y user) bool { return x.ID == y.ID })

	changed, _ := s.Set(ctx, user{ID: "a", Tags: []string{"new"}})
	if changed {
		t.Error("expected users with the same ID to be equal")
	}
	changed, _ = s.Set(ctx, user{ID: "b"})
	if !changed || s.Value().ID != "b" {
		t.Errorf("expected user b, got %+v", s.Value())
	}
}

func TestStateSetFromSubscriberOnMainDoesNotDeadlock(t *testing.T) {
	ds := newTestDispatchers(t)
	ctx := testContext(t)
	counter := NewState(0)
	echo := NewState(0)

	// a subscriber of counter writes into echo while another subscriber of
	// echo shares the single main carrier
	r := &recorder[int]{}
	echoSub := echo.Source().Subscribe(ctx, r.consumer(), On(ds.Main))
	defer echoSub.Cancel()
	pipe := counter.Source().Subscribe(ctx, Consumer[int]{
		OnValue: func(ctx context.Context, v int) { _, _ = echo.Set(ctx, v*10) },
	}, On(ds.Main))
	defer pipe.Cancel()
	waitFor(t, "subscribers", func() bool {
		return counter.SubscriberCount() == 1 && echo.SubscriberCount() == 1
	})
	waitFor(t, "initial echo", endsWith(r, 0))

	for i := 1; i <= 3; i++ {
		if _, err := counter.Set(ctx, i); err != nil {
			t.Fatal(err)
		}
		waitFor(t, "echo", endsWith(r, i*10))
	}
	assertValues(t, r.snapshot(), []int{0, 10, 20, 30})
}
