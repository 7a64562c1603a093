package stream

import (
	"context"
	"testing"
	"time"
)

func TestBroadcastReplayWindow(t *testing.T) {
	ctx := testContext(t)
	b := NewBroadcast[int](Replay(2))
	for i := 1; i <= 3; i++ {
		if err := b.Emit(ctx, i); err != nil {
			t.Fatal(err)
		}
	}
	assertValues(t, b.ReplayCache(), []int{2, 3})

	r := &recorder[int]{}
	sub := Take(b.Source(), 3).Subscribe(ctx, r.consumer())
	waitFor(t, "subscriber", func() bool { return b.SubscriberCount() == 1 })
	if err := b.Emit(ctx, 4); err != nil {
		t.Fatal(err)
	}
	if err := sub.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	assertValues(t, r.snapshot(), []int{2, 3, 4})
	waitFor(t, "unsubscribe", func() bool { return b.SubscriberCount() == 0 })
}

func TestBroadcastWithoutReplayDropsEarlyValues(t *testing.T) {
	ctx := testContext(t)
	b := NewBroadcast[string]()
	if err := b.Emit(ctx, "nobody listens"); err != nil {
		t.Fatal(err)
	}

	r := &recorder[string]{}
	sub := Take(b.Source(), 2).Subscribe(ctx, r.consumer())
	waitFor(t, "subscriber", func() bool { return b.SubscriberCount() == 1 })
	for _, v := range []string{"tap", "tap"} {
		if err := b.Emit(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := sub.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	assertValues(t, r.snapshot(), []string{"tap", "tap"})
}

func TestBroadcastFansOutToAllSubscribers(t *testing.T) {
	ctx := testContext(t)
	b := NewBroadcast[int]()
	r1, r2 := &recorder[int]{}, &recorder[int]{}
	sub1 := Take(b.Source(), 3).Subscribe(ctx, r1.consumer())
	sub2 := Take(b.Source(), 3).Subscribe(ctx, r2.consumer())
	waitFor(t, "subscribers", func() bool { return b.SubscriberCount() == 2 })

	for i := 1; i <= 3; i++ {
		if err := b.Emit(ctx, i); err != nil {
			t.Fatal(err)
		}
	}
	for _, sub := range []*Subscription{sub1, sub2} {
		if err := sub.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	assertValues(t, r1.snapshot(), []int{1, 2, 3})
	assertValues(t, r2.snapshot(), []int{1, 2, 3})
}

func TestBroadcastSlowSubscriberThrottlesEmitter(t *testing.T) {
	ctx := testContext(t)
	b := NewBroadcast[int]()
	fast := Take(b.Source(), 3).Subscribe(ctx, Consumer[int]{})
	slow := Take(b.Source(), 3).Subscribe(ctx, Consumer[int]{
		OnValue: func(ctx context.Context, _ int) { _ = Delay(ctx, unit) },
	})
	waitFor(t, "subscribers", func() bool { return b.SubscriberCount() == 2 })

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := b.Emit(ctx, i); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < unit {
		t.Errorf("expected the slow subscriber to hold the emitter back, emitted in %v", elapsed)
	}
	_ = fast.Wait(ctx)
	_ = slow.Wait(ctx)
}

func TestBroadcastExtraBufferDecouplesEmitter(t *testing.T) {
	ctx := testContext(t)
	b := NewBroadcast[int](ExtraBuffer(3))
	sub := Take(b.Source(), 3).Subscribe(ctx, Consumer[int]{
		OnValue: func(ctx context.Context, _ int) { _ = Delay(ctx, unit) },
	})
	waitFor(t, "subscriber", func() bool { return b.SubscriberCount() == 1 })

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := b.Emit(ctx, i); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed >= unit {
		t.Errorf("expected buffered emits not to wait, took %v", elapsed)
	}
	if err := sub.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestBroadcastTryEmit(t *testing.T) {
	ctx := testContext(t)
	b := NewBroadcast[int](Replay(1))
	if !b.TryEmit(1) {
		t.Fatal("expected TryEmit to succeed without subscribers")
	}
	assertValues(t, b.ReplayCache(), []int{1})

	b.ResetReplayCache()
	if len(b.ReplayCache()) != 0 {
		t.Errorf("expected an empty replay cache, got %v", b.ReplayCache())
	}

	rendezvous := NewBroadcast[int]()
	sub := Take(rendezvous.Source(), 1).Subscribe(ctx, Consumer[int]{})
	waitFor(t, "subscriber", func() bool { return rendezvous.SubscriberCount() == 1 })
	if rendezvous.TryEmit(7) {
		t.Error("expected TryEmit to refuse when a subscriber has no buffer")
	}
	if err := rendezvous.Emit(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if err := sub.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestBroadcastEmitRespectsContext(t *testing.T) {
	b := NewBroadcast[int]()
	ctx := testContext(t)
	sub := b.Source().Subscribe(ctx, Consumer[int]{
		OnValue: func(ctx context.Context, _ int) {
			Suspend(ctx, func() { <-ctx.Done() })
		},
	})
	waitFor(t, "subscriber", func() bool { return b.SubscriberCount() == 1 })
	if err := b.Emit(ctx, 1); err != nil {
		t.Fatal(err)
	}

	short, cancel := context.WithTimeout(ctx, unit)
	defer cancel()
	if err := b.Emit(short, 2); err == nil {
		t.Error("expected Emit to give up when its context ends")
	}
	sub.Cancel()
	_ = sub.Wait(ctx)
}
