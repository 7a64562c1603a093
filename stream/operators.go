package stream

import (
	"context"
	"fmt"
)

// Map transforms every value with fn.
func Map[I, O any](src *Source[I], fn func(ctx context.Context, v I) (O, error)) *Source[O] {
	return New(func(ctx context.Context, emit Emit[O]) error {
		return src.observe(ctx, func(v I) error {
			out, err := callOperator(ctx, "map", func() (O, error) { return fn(ctx, v) })
			if err != nil {
				return err
			}
			return emit(out)
		})
	}).Named("map")
}

// Filter keeps the values for which keep returns true.
func Filter[T any](src *Source[T], keep func(v T) bool) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		return src.observe(ctx, func(v T) error {
			ok, err := callOperator(ctx, "filter", func() (bool, error) { return keep(v), nil })
			if err != nil || !ok {
				return err
			}
			return emit(v)
		})
	}).Named("filter")
}

// OfType keeps the values whose dynamic type is U. Other values are dropped.
func OfType[T, U any](src *Source[T]) *Source[U] {
	return New(func(ctx context.Context, emit Emit[U]) error {
		return src.observe(ctx, func(v T) error {
			if u, ok := any(v).(U); ok {
				return emit(u)
			}
			return nil
		})
	}).Named("of-type")
}

// Indexed pairs a value with its zero-based position in the stream.
type Indexed[T any] struct {
	Index int `json:"index"`
	Value T   `json:"value"`
}

// WithIndex numbers values from 0. Numbering restarts for every subscription.
func WithIndex[T any](src *Source[T]) *Source[Indexed[T]] {
	return New(func(ctx context.Context, emit Emit[Indexed[T]]) error {
		i := 0
		return src.observe(ctx, func(v T) error {
			idx := i
			i++
			return emit(Indexed[T]{Index: idx, Value: v})
		})
	}).Named("with-index")
}

// Tap runs fn for every value and passes the value on unchanged.
func Tap[T any](src *Source[T], fn func(ctx context.Context, v T) error) *Source[T] {
	return tap(src, "tap", fn)
}

func tap[T any](src *Source[T], op string, fn func(ctx context.Context, v T) error) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		return src.observe(ctx, func(v T) error {
			if _, err := callOperator(ctx, op, func() (struct{}, error) { return struct{}{}, fn(ctx, v) }); err != nil {
				return err
			}
			return emit(v)
		})
	}).Named(op)
}

// Take emits the first n values and then completes, cancelling the upstream.
func Take[T any](src *Source[T], n int) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		if n <= 0 {
			return nil
		}
		stop := &takeDone{limit: n}
		count := 0
		err := src.observe(ctx, func(v T) error {
			if err := emit(v); err != nil {
				return err
			}
			count++
			if count == n {
				return stop
			}
			return nil
		})
		if err == stop {
			return nil
		}
		return err
	}).Named("take")
}

type takeDone struct{ limit int }

func (t *takeDone) Error() string { return fmt.Sprintf("take: limit %d reached", t.limit) }

// DistinctUntilChanged drops values equal to their predecessor.
func DistinctUntilChanged[T comparable](src *Source[T]) *Source[T] {
	return DistinctUntilChangedFunc(src, func(a, b T) bool { return a == b })
}

// DistinctUntilChangedFunc drops values that equal reports as equal to their
// predecessor.
func DistinctUntilChangedFunc[T any](src *Source[T], equal func(a, b T) bool) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		var (
			last T
			seen bool
		)
		return src.observe(ctx, func(v T) error {
			if seen {
				same, err := callOperator(ctx, "distinct", func() (bool, error) { return equal(last, v), nil })
				if err != nil || same {
					return err
				}
			}
			last, seen = v, true
			return emit(v)
		})
	}).Named("distinct")
}

// Reduce folds every value into an accumulator and emits the result once
// src completes.
func Reduce[T, R any](src *Source[T], initial R, fn func(acc R, v T) R) *Source[R] {
	return New(func(ctx context.Context, emit Emit[R]) error {
		acc := initial
		err := src.observe(ctx, func(v T) error {
			next, err := callOperator(ctx, "reduce", func() (R, error) { return fn(acc, v), nil })
			if err != nil {
				return err
			}
			acc = next
			return nil
		})
		if err != nil {
			return err
		}
		return emit(acc)
	}).Named("reduce")
}

// Concat subscribes to sources one after another.
func Concat[T any](sources ...*Source[T]) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		for _, src := range sources {
			if err := src.observe(ctx, emit); err != nil {
				return err
			}
		}
		return nil
	}).Named("concat")
}

// Catch replaces an upstream failure with the Source returned by handler. A
// nil Source completes the stream. Failures raised downstream of Catch and
// cancellation are not intercepted.
func Catch[T any](src *Source[T], handler func(ctx context.Context, err error) *Source[T]) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		g := &guard[T]{emit: emit}
		err := src.observe(ctx, g.next)
		if err == nil || g.downstream(err) || ctx.Err() != nil {
			return err
		}
		replacement, herr := callOperator(ctx, "catch", func() (*Source[T], error) {
			return handler(ctx, err), nil
		})
		if herr != nil {
			return herr
		}
		if replacement == nil {
			return nil
		}
		return replacement.observe(ctx, emit)
	}).Named("catch")
}

// CatchReturn emits fallback and completes when src fails upstream.
func CatchReturn[T any](src *Source[T], fallback T) *Source[T] {
	return Catch(src, func(context.Context, error) *Source[T] {
		return Of(fallback)
	}).Named("catch-return")
}
