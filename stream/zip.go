package stream

import (
	"context"
)

// Pair holds one value from each side of ZipPair.
type Pair[A, B any] struct {
	First  A
	Second B
}

// ZipPair zips a and b into pairs.
func ZipPair[A, B any](a *Source[A], b *Source[B]) *Source[Pair[A, B]] {
	return Zip(a, b, func(x A, y B) Pair[A, B] { return Pair[A, B]{First: x, Second: y} })
}

// Zip pairs the n-th value of a with the n-th value of b. It holds at most
// one unpaired value per side. When either side completes, Zip completes as
// soon as no pair can be formed any more; unpaired values are discarded. A
// failure on either side cancels the other and fails Zip.
func Zip[A, B, R any](a *Source[A], b *Source[B], combine func(x A, y B) R) *Source[R] {
	return New(func(ctx context.Context, emit Emit[R]) error {
		cctx, cancel := context.WithCancel(ctx)
		d := dispatcherFor(ctx)

		valA, endA, doneA := observeChild(cctx, d, a)
		valB, endB, doneB := observeChild(cctx, d, b)
		defer func() {
			cancel()
			join(ctx, doneA)
			join(ctx, doneB)
		}()

		var (
			pendA            A
			pendB            B
			hasA, hasB       bool
			closedA, closedB bool
		)
		for {
			if hasA && hasB {
				r, err := callOperator(ctx, "zip", func() (R, error) { return combine(pendA, pendB), nil })
				if err != nil {
					return err
				}
				var zeroA A
				var zeroB B
				pendA, pendB, hasA, hasB = zeroA, zeroB, false, false
				if err := emit(r); err != nil {
					return err
				}
				if closedA || closedB {
					return nil
				}
				continue
			}

			inA, inB := valA, valB
			if hasA {
				inA = nil
			}
			if hasB {
				inB = nil
			}
			var (
				endErr error
				ended  bool
				side   *bool
			)
			Suspend(ctx, func() {
				select {
				case pendA = <-inA:
					hasA = true
				case pendB = <-inB:
					hasB = true
				case endErr = <-endA:
					ended, side = true, &closedA
				case endErr = <-endB:
					ended, side = true, &closedB
				case <-ctx.Done():
				}
			})
			if err := ctx.Err(); err != nil {
				return err
			}
			if !ended {
				continue
			}
			if endErr != nil {
				return branchError(ctx, "zip", endErr, nil)
			}
			*side = true
			if side == &closedA {
				endA = nil
				if !hasA {
					return nil
				}
			} else {
				endB = nil
				if !hasB {
					return nil
				}
			}
		}
	}).Named("zip")
}

// observeChild runs src as a child task. Values arrive on the first channel; the
// terminal error (nil on completion) arrives on the second.
func observeChild[T any](ctx context.Context, d Dispatcher, src *Source[T]) (<-chan T, <-chan error, <-chan struct{}) {
	vals := make(chan T)
	end := make(chan error, 1)
	done := make(chan struct{})
	launch(ctx, d, func(ctx context.Context) {
		defer close(done)
		err := src.observe(ctx, func(v T) error {
			_, err := send(ctx, vals, v, nil)
			return err
		})
		if ctx.Err() == nil {
			end <- err
		}
	})
	return vals, end, done
}
