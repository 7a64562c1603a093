package stream

import (
	"context"
	"time"

	apperrors "github.com/kbukum/flowkit/errors"
)

type raceEvent[T any] struct {
	idx int
	val T
	err error
	end bool
}

// Race subscribes to every source and mirrors the first one to emit or
// terminate. The others are cancelled at that moment. The winner's failure
// is passed on unchanged.
func Race[T any](sources ...*Source[T]) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		if len(sources) == 0 {
			return nil
		}
		d := dispatcherFor(ctx)
		events := make(chan raceEvent[T])
		cancels := make([]context.CancelFunc, len(sources))
		dones := make([]chan struct{}, len(sources))
		for i, src := range sources {
			bctx, cancel := context.WithCancel(ctx)
			cancels[i] = cancel
			dones[i] = make(chan struct{})
			launch(bctx, d, func(bctx context.Context) {
				defer close(dones[i])
				err := src.observe(bctx, func(v T) error {
					_, err := send(bctx, events, raceEvent[T]{idx: i, val: v}, nil)
					return err
				})
				if bctx.Err() == nil {
					_, _ = send(bctx, events, raceEvent[T]{idx: i, err: err, end: true}, nil)
				}
			})
		}
		defer func() {
			for i := range sources {
				cancels[i]()
				join(ctx, dones[i])
			}
		}()

		winner := -1
		for {
			ev, _, err := recv(ctx, events)
			if err != nil {
				return err
			}
			if winner < 0 {
				winner = ev.idx
				for i, cancel := range cancels {
					if i != winner {
						cancel()
					}
				}
			}
			if ev.idx != winner {
				continue
			}
			if ev.end {
				return ev.err
			}
			if err := emit(ev.val); err != nil {
				return err
			}
		}
	}).Named("race")
}

// Timeout fails with TIMEOUT unless src emits or terminates within d. Once
// src has emitted, the timer no longer applies.
func Timeout[T any](src *Source[T], d time.Duration) *Source[T] {
	timer := New(func(ctx context.Context, _ Emit[T]) error {
		if err := Delay(ctx, d); err != nil {
			return err
		}
		return apperrors.Timeout(src.Name())
	}).Named("timeout-timer")
	return Race(src, timer).Named("timeout")
}

// Timer emits the current time once, after d.
func Timer(d time.Duration) *Source[time.Time] {
	return New(func(ctx context.Context, emit Emit[time.Time]) error {
		if err := Delay(ctx, d); err != nil {
			return err
		}
		return emit(time.Now())
	}).Named("timer")
}

// Interval emits 0, 1, 2, ... with period between values, starting one
// period after subscription. It ends only when cancelled.
func Interval(period time.Duration) *Source[int64] {
	return New(func(ctx context.Context, emit Emit[int64]) error {
		for i := int64(0); ; i++ {
			if err := Delay(ctx, period); err != nil {
				return err
			}
			if err := emit(i); err != nil {
				return err
			}
		}
	}).Named("interval")
}
