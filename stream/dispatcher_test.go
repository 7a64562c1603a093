package stream

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/flowkit/component"
	apperrors "github.com/kbukum/flowkit/errors"
)

func TestSuspendReleasesCarrier(t *testing.T) {
	p := NewPool("single", 1)
	ctx := testContext(t)
	release := make(chan struct{})
	waiterDone := make(chan struct{})

	launch(ctx, p, func(ctx context.Context) {
		Suspend(ctx, func() { <-release })
		close(waiterDone)
	})
	launch(ctx, p, func(context.Context) { close(release) })

	select {
	case <-waiterDone:
	case <-time.After(time.Second):
		t.Fatal("expected the second task to run while the first was suspended")
	}
	if err := p.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Busy() != 0 {
		t.Errorf("expected all carriers free, %d busy", p.Busy())
	}
}

func TestMainDispatcherRunsOneTaskAtATime(t *testing.T) {
	ds := newTestDispatchers(t)
	ctx := testContext(t)
	var running, overlaps atomic.Int32

	worker := New(func(ctx context.Context, emit Emit[int]) error {
		for i := 0; i < 5; i++ {
			if running.Add(1) > 1 {
				overlaps.Add(1)
			}
			for j := 0; j < 100; j++ {
				runtime.Gosched()
			}
			running.Add(-1)
			if err := Delay(ctx, time.Millisecond); err != nil {
				return err
			}
		}
		return nil
	})

	subs := []*Subscription{
		worker.Subscribe(ctx, Consumer[int]{}, On(ds.Main)),
		worker.Subscribe(ctx, Consumer[int]{}, On(ds.Main)),
		worker.Subscribe(ctx, Consumer[int]{}, On(ds.Main)),
	}
	for _, sub := range subs {
		if err := sub.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if overlaps.Load() != 0 {
		t.Errorf("expected main to run tasks one at a time, saw %d overlaps", overlaps.Load())
	}
}

func TestFlowOnMovesUpstreamOnly(t *testing.T) {
	ds := newTestDispatchers(t)
	ctx := testContext(t)
	var produced, mapped, delivered atomic.Value

	src := New(func(ctx context.Context, emit Emit[int]) error {
		produced.Store(CurrentDispatcher(ctx).Name())
		return emit(1)
	})
	upstream := Map(src, func(ctx context.Context, v int) (int, error) {
		mapped.Store(CurrentDispatcher(ctx).Name())
		return v, nil
	})
	pipeline := Map(FlowOn(upstream, ds.BlockingIO), func(ctx context.Context, v int) (int, error) {
		delivered.Store(CurrentDispatcher(ctx).Name())
		return v, nil
	})

	got, err := Collect(ctx, pipeline, On(ds.Main))
	if err != nil {
		t.Fatal(err)
	}
	assertValues(t, got, []int{1})
	if produced.Load() != BlockingIOName || mapped.Load() != BlockingIOName {
		t.Errorf("expected the upstream on blocking-io, got %v / %v", produced.Load(), mapped.Load())
	}
	if delivered.Load() != MainName {
		t.Errorf("expected the downstream on main, got %v", delivered.Load())
	}
}

func TestFlowOnChain(t *testing.T) {
	ds := newTestDispatchers(t)
	ctx := testContext(t)
	var first, second atomic.Value

	src := New(func(ctx context.Context, emit Emit[int]) error {
		first.Store(CurrentDispatcher(ctx).Name())
		return emit(1)
	})
	middle := Tap(FlowOn(src, ds.BlockingIO), func(ctx context.Context, _ int) error {
		second.Store(CurrentDispatcher(ctx).Name())
		return nil
	})
	if _, err := Collect(ctx, FlowOn(middle, ds.Computation), On(ds.Main)); err != nil {
		t.Fatal(err)
	}
	if first.Load() != BlockingIOName || second.Load() != ComputationName {
		t.Errorf("expected blocking-io then computation, got %v then %v", first.Load(), second.Load())
	}
}

func TestFlowOnSameDispatcherIsFused(t *testing.T) {
	ds := newTestDispatchers(t)
	ctx := testContext(t)
	var where atomic.Value
	src := New(func(ctx context.Context, emit Emit[int]) error {
		where.Store(CurrentDispatcher(ctx))
		return emit(1)
	})
	if _, err := Collect(ctx, FlowOn(src, ds.Main), On(ds.Main)); err != nil {
		t.Fatal(err)
	}
	if where.Load() != Dispatcher(ds.Main) {
		t.Errorf("expected main, got %v", where.Load())
	}
}

func TestFlowOnPropagatesFailureAndCancel(t *testing.T) {
	ds := newTestDispatchers(t)
	ctx := testContext(t)

	_, err := Collect(ctx, FlowOn(Fail[int](errors.New("disk gone")), ds.BlockingIO))
	if !apperrors.HasCode(err, apperrors.ErrCodeSourceFailure) {
		t.Fatalf("expected the upstream SOURCE_FAILURE, got %v", err)
	}

	upstreamDone := make(chan struct{})
	never := New(func(ctx context.Context, _ Emit[int]) error {
		defer close(upstreamDone)
		Suspend(ctx, func() { <-ctx.Done() })
		return ctx.Err()
	})
	sub := FlowOn(never, ds.BlockingIO).Subscribe(ctx, Consumer[int]{}, On(ds.Main))
	time.Sleep(unit / 2)
	sub.Cancel()
	_ = sub.Wait(ctx)
	select {
	case <-upstreamDone:
	default:
		t.Error("expected the upstream task to end with the subscription")
	}
}

func TestDefaultDispatcher(t *testing.T) {
	ctx := testContext(t)
	var name atomic.Value
	sub := Of(1).Subscribe(ctx, Consumer[int]{
		OnValue: func(ctx context.Context, _ int) { name.Store(CurrentDispatcher(ctx).Name()) },
	})
	if err := sub.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if name.Load() != ComputationName {
		t.Errorf("expected the default computation pool, got %v", name.Load())
	}
	if CurrentDispatcher(context.Background()) != nil {
		t.Error("expected no dispatcher outside of a task")
	}
}

func TestSetDefaultDispatchers(t *testing.T) {
	prev := DefaultDispatchers()
	defer SetDefaultDispatchers(prev)

	ds := NewDispatchers(Config{ComputationParallelism: 3})
	SetDefaultDispatchers(ds)
	if DefaultDispatchers() != ds {
		t.Fatal("expected the replacement to be returned")
	}
	if ds.Computation.Parallelism() != 3 || ds.Main.Parallelism() != 1 || ds.BlockingIO.Parallelism() != 64 {
		t.Errorf("unexpected parallelism %d/%d/%d",
			ds.Main.Parallelism(), ds.Computation.Parallelism(), ds.BlockingIO.Parallelism())
	}
}

func TestDispatchersLookupAndComponent(t *testing.T) {
	ds := newTestDispatchers(t)
	for _, name := range []string{MainName, ComputationName, BlockingIOName, UnconfinedName} {
		d, ok := ds.Lookup(name)
		if !ok || d.Name() != name {
			t.Errorf("Lookup(%q) = %v, %v", name, d, ok)
		}
	}
	if _, ok := ds.Lookup("gpu"); ok {
		t.Error("expected unknown dispatcher lookup to fail")
	}

	var c component.Component = ds
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h := c.Health(context.Background())
	if h.Status != component.StatusHealthy {
		t.Errorf("expected healthy idle dispatchers, got %+v", h)
	}
	if !strings.Contains(h.Message, "main=0/1") {
		t.Errorf("expected per-pool usage in %q", h.Message)
	}
	if desc := ds.Describe(); desc.Type != "scheduler" {
		t.Errorf("unexpected description %+v", desc)
	}
}

func TestDelay(t *testing.T) {
	ctx := testContext(t)
	start := time.Now()
	if err := Delay(ctx, unit); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < unit {
		t.Error("expected Delay to wait")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := Delay(cancelled, time.Hour); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGate(t *testing.T) {
	ctx := testContext(t)
	g := newGate()
	if err := g.lock(ctx); err != nil {
		t.Fatal(err)
	}

	short, cancel := context.WithTimeout(ctx, unit/2)
	defer cancel()
	if err := g.lock(short); err == nil {
		t.Fatal("expected a held gate to block until the context ends")
	}
	g.unlock()
	if err := g.lock(ctx); err != nil {
		t.Fatalf("expected the released gate to be free, got %v", err)
	}
	g.unlock()
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ComputationParallelism != runtime.GOMAXPROCS(0) || cfg.BlockingIOParallelism != 64 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
	bad := Config{ComputationParallelism: -1}
	if err := bad.Validate(); err == nil {
		t.Error("expected negative parallelism to be rejected")
	}
}
