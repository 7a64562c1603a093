package stream

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"
)

// unit is the time quantum of timing tests.
const unit = 20 * time.Millisecond

func newTestDispatchers(t *testing.T) *Dispatchers {
	t.Helper()
	ds := NewDispatchers(Config{ComputationParallelism: 4, BlockingIOParallelism: 4})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := ds.Stop(ctx); err != nil {
			t.Errorf("dispatchers did not drain: %v", err)
		}
	})
	return ds
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// delayed emits each value after waiting d.
func delayed[T any](d time.Duration, values ...T) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		for _, v := range values {
			if err := Delay(ctx, d); err != nil {
				return err
			}
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// recorder collects values delivered to a consumer.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *recorder[T]) consumer() Consumer[T] {
	return Consumer[T]{OnValue: func(_ context.Context, v T) { r.add(v) }}
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.values)
}

func assertValues[T comparable](t *testing.T, got, want []T) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
