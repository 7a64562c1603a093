package stream

import (
	"context"
	"time"
)

// Throttle passes the first value of every interval and drops the values
// that follow it within the interval.
func Throttle[T any](src *Source[T], interval time.Duration) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		var last time.Time
		return src.observe(ctx, func(v T) error {
			now := time.Now()
			if !last.IsZero() && now.Sub(last) < interval {
				return nil
			}
			last = now
			return emit(v)
		})
	}).Named("throttle")
}

// Batch groups values into slices of up to size values. With a timeout a
// batch is also emitted once timeout has passed since its first value.
// size 0 batches by time only. When both are zero size defaults to 1. A
// partial batch is emitted when src completes and dropped when it fails.
func Batch[T any](src *Source[T], size int, timeout time.Duration) *Source[[]T] {
	if size <= 0 && timeout <= 0 {
		size = 1
	}
	if timeout <= 0 {
		return New(func(ctx context.Context, emit Emit[[]T]) error {
			var batch []T
			err := src.observe(ctx, func(v T) error {
				batch = append(batch, v)
				if len(batch) < size {
					return nil
				}
				full := batch
				batch = nil
				return emit(full)
			})
			if err != nil || len(batch) == 0 {
				return err
			}
			return emit(batch)
		}).Named("batch")
	}

	return New(func(ctx context.Context, emit Emit[[]T]) error {
		cctx, cancel := context.WithCancel(ctx)
		vals, end, done := observeChild(cctx, dispatcherFor(ctx), src)
		defer func() {
			cancel()
			join(ctx, done)
		}()

		timer := time.NewTimer(timeout)
		timer.Stop()
		defer timer.Stop()

		var batch []T
		flush := func() error {
			timer.Stop()
			out := batch
			batch = nil
			return emit(out)
		}
		for {
			var (
				v      T
				got    bool
				fired  bool
				ended  bool
				endErr error
			)
			Suspend(ctx, func() {
				select {
				case v = <-vals:
					got = true
				case endErr = <-end:
					ended = true
				case <-timer.C:
					fired = true
				case <-ctx.Done():
				}
			})
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case got:
				batch = append(batch, v)
				if len(batch) == 1 {
					timer.Reset(timeout)
				}
				if size > 0 && len(batch) >= size {
					if err := flush(); err != nil {
						return err
					}
				}
			case fired:
				if len(batch) > 0 {
					if err := flush(); err != nil {
						return err
					}
				}
			case ended:
				if endErr != nil || len(batch) == 0 {
					return endErr
				}
				return flush()
			}
		}
	}).Named("batch")
}

// Debounce emits a value only once quiet has passed without a newer one.
// The last pending value is emitted when src completes.
func Debounce[T any](src *Source[T], quiet time.Duration) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		cctx, cancel := context.WithCancel(ctx)
		vals, end, done := observeChild(cctx, dispatcherFor(ctx), src)
		defer func() {
			cancel()
			join(ctx, done)
		}()

		timer := time.NewTimer(quiet)
		timer.Stop()
		defer timer.Stop()

		var (
			latest  T
			pending bool
		)
		for {
			var (
				v      T
				got    bool
				fired  bool
				ended  bool
				endErr error
			)
			Suspend(ctx, func() {
				select {
				case v = <-vals:
					got = true
				case endErr = <-end:
					ended = true
				case <-timer.C:
					fired = true
				case <-ctx.Done():
				}
			})
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case got:
				latest, pending = v, true
				timer.Reset(quiet)
			case fired:
				pending = false
				if err := emit(latest); err != nil {
					return err
				}
			case ended:
				if endErr != nil || !pending {
					return endErr
				}
				return emit(latest)
			}
		}
	}).Named("debounce")
}
