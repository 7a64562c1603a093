package stream

import (
	"context"

	apperrors "github.com/kbukum/flowkit/errors"
)

// Iterator is a pull-based sequence.
type Iterator[T any] interface {
	// Next returns the next value. ok is false once the sequence is exhausted
	// or failed; err carries the failure.
	Next(ctx context.Context) (v T, ok bool, err error)
	// Close releases the iterator. It is safe to call more than once.
	Close()
}

// FromIterator adapts a pull iterator into a Source. open is called once per
// subscription and the iterator is closed when the subscription ends.
func FromIterator[T any](open func(ctx context.Context) (Iterator[T], error)) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		it, err := open(ctx)
		if err != nil {
			return err
		}
		defer it.Close()
		for {
			v, ok, err := it.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := emit(v); err != nil {
				return err
			}
		}
	}).Named("iterator")
}

// ToIterator subscribes to src and exposes its values for pulling. The
// producer runs at most one value ahead of the reader. Close cancels the
// subscription.
func ToIterator[T any](ctx context.Context, src *Source[T], opts ...SubscribeOption) Iterator[T] {
	it := &pullIterator[T]{ch: make(chan T, 1)}
	it.sub = src.Subscribe(ctx, Consumer[T]{
		OnValue: func(ctx context.Context, v T) {
			_, _ = send(ctx, it.ch, v, nil)
		},
	}, opts...)
	return it
}

type pullIterator[T any] struct {
	sub *Subscription
	ch  chan T
}

func (it *pullIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case v := <-it.ch:
		return v, true, nil
	default:
	}

	var (
		v     T
		ok    bool
		ended bool
		err   error
	)
	Suspend(ctx, func() {
		select {
		case v = <-it.ch:
			ok = true
		case <-it.sub.Done():
			ended = true
		case <-ctx.Done():
			err = apperrors.Cancelled(ctx.Err())
		}
	})
	switch {
	case ok:
		return v, true, nil
	case err != nil:
		return zero, false, err
	case ended:
		select {
		case v := <-it.ch:
			return v, true, nil
		default:
		}
	}
	return zero, false, it.sub.Err()
}

func (it *pullIterator[T]) Close() { it.sub.Cancel() }

// SliceIterator iterates over values.
func SliceIterator[T any](values []T) Iterator[T] {
	return &sliceIterator[T]{values: values}
}

type sliceIterator[T any] struct {
	values []T
	pos    int
}

func (it *sliceIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	if it.pos >= len(it.values) {
		return zero, false, nil
	}
	v := it.values[it.pos]
	it.pos++
	return v, true, nil
}

func (it *sliceIterator[T]) Close() { it.pos = len(it.values) }
