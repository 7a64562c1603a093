package stream

import (
	"context"

	"github.com/kbukum/flowkit/observability"
)

type handoff[T any] struct {
	val T
	err error
	end bool
}

// FlowOn runs src, and every operator between src and the previous FlowOn,
// on d. Operators after FlowOn keep running where the subscriber runs.
// Values cross over through a one-slot hand-off that keeps their order.
// When d is already the current dispatcher no hand-off is made.
func FlowOn[T any](src *Source[T], d Dispatcher) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		from := CurrentDispatcher(ctx)
		if from == d {
			return src.observe(ctx, emit)
		}
		fromName := UnconfinedName
		if from != nil {
			fromName = from.Name()
		}
		observability.Stream().RecordHandoff(ctx, fromName, d.Name())

		cctx, cancel := context.WithCancel(ctx)
		ch := make(chan handoff[T], 1)
		done := make(chan struct{})
		launch(cctx, d, func(uctx context.Context) {
			defer close(done)
			err := src.observe(uctx, func(v T) error {
				_, err := send(uctx, ch, handoff[T]{val: v}, nil)
				return err
			})
			if uctx.Err() == nil {
				_, _ = send(uctx, ch, handoff[T]{err: err, end: true}, nil)
			}
		})
		defer func() {
			cancel()
			join(ctx, done)
		}()

		for {
			h, _, err := recv(ctx, ch)
			if err != nil {
				return err
			}
			if h.end {
				return h.err
			}
			if err := emit(h.val); err != nil {
				return err
			}
		}
	}).Named("flow-on")
}
