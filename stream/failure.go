package stream

import (
	"context"
	"fmt"

	apperrors "github.com/kbukum/flowkit/errors"
)

// callOperator runs a user-supplied transform step. Errors and panics become
// OPERATOR_FAILURE unless the subscription is already cancelled.
func callOperator[R any](ctx context.Context, op string, fn func() (R, error)) (r R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if err == nil {
			return
		}
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
			return
		}
		err = apperrors.OperatorFailure(op, err)
	}()
	return fn()
}

// guard remembers the last error returned by a downstream emit, so a
// combinator can tell downstream failures from branch failures.
type guard[T any] struct {
	emit Emit[T]
	err  error
}

func (g *guard[T]) next(v T) error {
	if err := g.emit(v); err != nil {
		g.err = err
		return err
	}
	return nil
}

// downstream reports whether err originated downstream of the guard.
func (g *guard[T]) downstream(err error) bool {
	return g.err != nil && err == g.err
}

// branchError classifies the failure of one branch of a combinator.
func branchError(ctx context.Context, name string, err, downErr error) error {
	switch {
	case downErr != nil:
		return downErr
	case ctx.Err() != nil:
		return ctx.Err()
	case err == nil:
		return nil
	}
	return apperrors.CombinatorFailure(name, err)
}
