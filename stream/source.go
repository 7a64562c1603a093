package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	apperrors "github.com/kbukum/flowkit/errors"
)

// ErrProducerReturned is returned by an Emit called after its producer returned.
var ErrProducerReturned = errors.New("stream: emit after producer returned")

// Emit delivers one value downstream. A non-nil error means the producer
// must stop: the subscription was cancelled or downstream failed. Emit must
// not be called concurrently.
type Emit[T any] func(v T) error

// Producer generates the values of one subscription.
type Producer[T any] func(ctx context.Context, emit Emit[T]) error

// Source is a cold stream. It holds no per-subscription state and can be
// subscribed any number of times.
type Source[T any] struct {
	name    string
	produce Producer[T]
}

// New creates a Source from a producer.
func New[T any](produce Producer[T]) *Source[T] {
	return &Source[T]{name: "source", produce: produce}
}

// Named returns a copy of s that reports name in logs and errors.
func (s *Source[T]) Named(name string) *Source[T] {
	return &Source[T]{name: name, produce: s.produce}
}

// Name returns the source name.
func (s *Source[T]) Name() string { return s.name }

// observe runs the producer inline, passing each value to next.
//
// The returned error is classified: an error returned by next comes back
// unchanged, cancellation comes back as ctx.Err(), an *errors.AppError
// passes through, and anything else becomes SOURCE_FAILURE.
func (s *Source[T]) observe(ctx context.Context, next Emit[T]) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		returned atomic.Bool
		downErr  error
	)
	emit := func(v T) error {
		if returned.Load() {
			return ErrProducerReturned
		}
		if downErr != nil {
			return downErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := next(v); err != nil {
			downErr = err
			return err
		}
		return nil
	}

	defer func() {
		returned.Store(true)
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", s.name, r)
		}
		err = classify(ctx, err, downErr)
	}()
	return s.produce(ctx, emit)
}

func classify(ctx context.Context, err, downErr error) error {
	switch {
	case downErr != nil:
		return downErr
	case ctx.Err() != nil:
		return ctx.Err()
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	}
	return apperrors.SourceFailure(err)
}

// Of emits the given values in order.
func Of[T any](values ...T) *Source[T] {
	return FromSlice(values).Named("of")
}

// FromSlice emits the elements of values in order.
func FromSlice[T any](values []T) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		for _, v := range values {
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	}).Named("slice")
}

// FromFunc emits the single value returned by fn.
func FromFunc[T any](fn func(ctx context.Context) (T, error)) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		return emit(v)
	}).Named("func")
}

// Empty completes without emitting.
func Empty[T any]() *Source[T] {
	return New(func(context.Context, Emit[T]) error { return nil }).Named("empty")
}

// Fail fails every subscription with err.
func Fail[T any](err error) *Source[T] {
	return New(func(context.Context, Emit[T]) error { return err }).Named("fail")
}

// Never emits nothing and ends only when cancelled.
func Never[T any]() *Source[T] {
	return New(func(ctx context.Context, _ Emit[T]) error {
		Suspend(ctx, func() { <-ctx.Done() })
		return ctx.Err()
	}).Named("never")
}

// Defer builds a fresh Source for every subscription.
func Defer[T any](build func(ctx context.Context) *Source[T]) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		src, err := callOperator(ctx, "defer", func() (*Source[T], error) {
			return build(ctx), nil
		})
		if err != nil {
			return err
		}
		if src == nil {
			return nil
		}
		return src.observe(ctx, emit)
	}).Named("defer")
}
