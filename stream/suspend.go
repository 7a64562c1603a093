package stream

import (
	"context"
	"sync/atomic"
	"time"
)

type carrierKey struct{}

// carrier is the pool slot a task holds while it executes.
type carrier struct {
	pool *Pool
	held atomic.Bool
}

func (c *carrier) acquire(ctx context.Context) error {
	if err := c.pool.slots.Acquire(ctx); err != nil {
		return err
	}
	c.held.Store(true)
	return nil
}

func (c *carrier) release() {
	if c.held.CompareAndSwap(true, false) {
		c.pool.slots.Release()
	}
}

// Suspend runs wait with the calling task's carrier released, so other tasks
// of the same dispatcher can run meanwhile. The carrier is taken back before
// Suspend returns. Once ctx is done the task continues without a carrier
// rather than queueing for one.
//
// Code outside a pool task (Unconfined, plain goroutines) simply runs wait.
func Suspend(ctx context.Context, wait func()) {
	c, _ := ctx.Value(carrierKey{}).(*carrier)
	if c == nil || !c.held.Load() {
		wait()
		return
	}
	c.release()
	defer func() { _ = c.acquire(ctx) }()
	wait()
}

// Delay pauses for d. It returns ctx.Err() if ctx ends first.
func Delay(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	var err error
	Suspend(ctx, func() {
		select {
		case <-timer.C:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

// send delivers v on ch. It reports false when stop closes first.
func send[T any](ctx context.Context, ch chan<- T, v T, stop <-chan struct{}) (bool, error) {
	select {
	case ch <- v:
		return true, nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var (
		sent bool
		err  error
	)
	Suspend(ctx, func() {
		select {
		case ch <- v:
			sent = true
		case <-stop:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return sent, err
}

// recv takes the next value from ch. ok is false once ch is closed.
func recv[T any](ctx context.Context, ch <-chan T) (v T, ok bool, err error) {
	select {
	case v, ok = <-ch:
		return v, ok, nil
	default:
	}
	if err = ctx.Err(); err != nil {
		return v, false, err
	}
	Suspend(ctx, func() {
		select {
		case v, ok = <-ch:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return v, ok, err
}

// join waits for done regardless of ctx. Child tasks always end once their
// context is cancelled, so join after cancel is bounded.
func join(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
		return
	default:
	}
	Suspend(ctx, func() { <-done })
}

// gate is a mutual-exclusion lock whose waiters suspend.
type gate chan struct{}

func newGate() gate { return make(gate, 1) }

func (g gate) lock(ctx context.Context) error {
	select {
	case g <- struct{}{}:
		return nil
	default:
	}
	var err error
	Suspend(ctx, func() {
		select {
		case g <- struct{}{}:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func (g gate) unlock() { <-g }
