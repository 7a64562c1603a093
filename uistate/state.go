package uistate

import (
	apperrors "github.com/kbukum/flowkit/errors"
)

// State is one of Loading, Success[T] or Failure.
type State[T any] interface {
	// Kind names the case for logs and wire encodings.
	Kind() Kind
	sealed()
}

// Kind is the case of a State.
type Kind string

const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Loading means the value has not arrived yet.
type Loading[T any] struct{}

// Success carries the value.
type Success[T any] struct {
	Data T
}

// Failure carries the error that ended loading.
type Failure[T any] struct {
	Err error
}

func (Loading[T]) Kind() Kind { return KindLoading }
func (Success[T]) Kind() Kind { return KindSuccess }
func (Failure[T]) Kind() Kind { return KindError }

func (Loading[T]) sealed() {}
func (Success[T]) sealed() {}
func (Failure[T]) sealed() {}

// NewLoading returns the Loading state.
func NewLoading[T any]() State[T] { return Loading[T]{} }

// NewSuccess wraps data.
func NewSuccess[T any](data T) State[T] { return Success[T]{Data: data} }

// NewFailure wraps err.
func NewFailure[T any](err error) State[T] { return Failure[T]{Err: err} }

// Match calls the handler for the case of s. A nil s counts as Loading.
func Match[T, R any](s State[T], loading func() R, success func(T) R, failure func(error) R) R {
	switch v := s.(type) {
	case Success[T]:
		return success(v.Data)
	case Failure[T]:
		return failure(v.Err)
	default:
		return loading()
	}
}

// View is a JSON-friendly rendering of a State.
type View[T any] struct {
	Status Kind                     `json:"status"`
	Data   *T                       `json:"data,omitempty"`
	Error  *apperrors.ErrorResponse `json:"error,omitempty"`
}

// ToView renders s for the wire. Errors are reported as AppError responses.
func ToView[T any](s State[T]) View[T] {
	return Match(s,
		func() View[T] { return View[T]{Status: KindLoading} },
		func(data T) View[T] { return View[T]{Status: KindSuccess, Data: &data} },
		func(err error) View[T] {
			appErr := apperrors.Wrap(err)
			if appErr == nil {
				appErr = apperrors.Internal(nil)
			}
			resp := appErr.ToResponse()
			return View[T]{Status: KindError, Error: &resp}
		},
	)
}

// Equal reports whether two states are the same case with equal payloads.
// Error payloads compare by message.
func Equal[T comparable](a, b State[T]) bool {
	return EqualFunc(a, b, func(x, y T) bool { return x == y })
}

// EqualFunc is Equal with eq comparing success payloads.
func EqualFunc[T any](a, b State[T], eq func(x, y T) bool) bool {
	switch x := a.(type) {
	case Success[T]:
		y, ok := b.(Success[T])
		return ok && eq(x.Data, y.Data)
	case Failure[T]:
		y, ok := b.(Failure[T])
		return ok && errorText(x.Err) == errorText(y.Err)
	default:
		switch b.(type) {
		case Success[T], Failure[T]:
			return false
		}
		return true
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
