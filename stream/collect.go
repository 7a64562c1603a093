package stream

import (
	"context"

	apperrors "github.com/kbukum/flowkit/errors"
)

// Collect subscribes to src and gathers every value until it completes.
// On failure it returns the values received so far with the error. If ctx is
// cancelled it returns a CANCELLED error.
func Collect[T any](ctx context.Context, src *Source[T], opts ...SubscribeOption) ([]T, error) {
	var out []T
	sub := src.Subscribe(ctx, Consumer[T]{
		OnValue: func(_ context.Context, v T) { out = append(out, v) },
	}, opts...)
	join(ctx, sub.Done())
	return out, sub.Err()
}

// ForEach runs fn for every value of src and waits for the end. An error
// from fn fails the subscription with OPERATOR_FAILURE.
func ForEach[T any](ctx context.Context, src *Source[T], fn func(ctx context.Context, v T) error, opts ...SubscribeOption) error {
	sub := tap(src, "for-each", fn).Subscribe(ctx, Consumer[T]{}, opts...)
	join(ctx, sub.Done())
	return sub.Err()
}

// First returns the first value of src and cancels the rest. It fails with
// NOT_FOUND when src completes empty.
func First[T any](ctx context.Context, src *Source[T], opts ...SubscribeOption) (T, error) {
	values, err := Collect(ctx, Take(src, 1), opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(values) == 0 {
		var zero T
		return zero, apperrors.NotFound("stream value", src.Name())
	}
	return values[0], nil
}
