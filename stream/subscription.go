package stream

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
)

// SubscriptionState is the lifecycle position of a subscription.
type SubscriptionState int32

const (
	Active SubscriptionState = iota
	Completed
	Failed
	Cancelled
)

func (s SubscriptionState) String() string {
	switch s {
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Consumer receives the outcome of a subscription. Nil callbacks are skipped.
//
// OnValue runs in the subscription task, one value at a time. Its ctx is
// the task context and may be passed to suspending calls such as State.Set.
// At most one of OnError and OnComplete fires; neither fires on Cancel.
type Consumer[T any] struct {
	OnValue    func(ctx context.Context, v T)
	OnError    func(err error)
	OnComplete func()
}

// Subscription is the handle of one running subscription.
type Subscription struct {
	id     string
	name   string
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// ID returns the subscription's unique id.
func (s *Subscription) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// Cancel stops the subscription. It is idempotent and has no effect once the
// subscription has completed or failed. No OnValue call starts after Cancel
// returns.
func (s *Subscription) Cancel() {
	s.cancel()
	s.state.CompareAndSwap(int32(Active), int32(Cancelled))
}

// Done is closed once the subscription reached its terminal state and its
// callbacks returned.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the terminal error: nil while active or after completion, the
// failure after Failed, and a CANCELLED error after Cancelled.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the subscription ends and returns Err. If ctx ends
// first it returns a CANCELLED error without cancelling the subscription.
func (s *Subscription) Wait(ctx context.Context) error {
	var err error
	Suspend(ctx, func() {
		select {
		case <-s.done:
		case <-ctx.Done():
			err = apperrors.Cancelled(ctx.Err())
		}
	})
	if err != nil {
		return err
	}
	return s.err
}

// SubscribeOption configures Subscribe.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	dispatcher Dispatcher
}

// On runs the subscription task on d. Without it the task runs on the
// caller's current dispatcher, or on the default computation pool.
func On(d Dispatcher) SubscribeOption {
	return func(o *subscribeOptions) { o.dispatcher = d }
}

// Subscribe starts a new independent execution of s. Cancelling ctx cancels
// the subscription.
func (s *Source[T]) Subscribe(ctx context.Context, c Consumer[T], opts ...SubscribeOption) *Subscription {
	o := subscribeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	d := o.dispatcher
	if d == nil {
		d = dispatcherFor(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		id:     uuid.NewString(),
		name:   s.name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	launch(ctx, d, func(ctx context.Context) {
		drive(ctx, sub, s, c, d)
	})
	return sub
}

func drive[T any](ctx context.Context, sub *Subscription, src *Source[T], c Consumer[T], d Dispatcher) {
	defer close(sub.done)
	defer sub.cancel()

	ctx = logger.ContextWithSubscription(ctx, sub.id)
	ctx, trace := observability.StartSubscription(ctx, sub.id, d.Name(), observability.Stream())
	log := logger.Get("stream").WithContext(ctx)
	log.Debug("subscription started", logger.Fields(
		logger.FieldStream, src.name,
		logger.FieldDispatcher, d.Name(),
	))

	var delivered int64
	err := src.observe(ctx, func(v T) error {
		if sub.State() == Cancelled {
			return ctx.Err()
		}
		if c.OnValue != nil {
			if err := deliver(ctx, c.OnValue, v); err != nil {
				return err
			}
		}
		delivered++
		return nil
	})

	state := sub.finish(ctx, err)
	trace.End(ctx, state.String(), delivered, failure(state, sub.err))

	fields := logger.Fields(
		logger.FieldStream, src.name,
		logger.FieldState, state.String(),
		"delivered", delivered,
	)
	switch state {
	case Completed:
		log.Debug("subscription completed", fields)
		if c.OnComplete != nil {
			callback(log, "complete", c.OnComplete)
		}
	case Failed:
		log.Warn("subscription failed", logger.MergeWithError(fields, sub.err))
		if c.OnError != nil {
			callback(log, "error", func() { c.OnError(sub.err) })
		}
	default:
		log.Debug("subscription cancelled", fields)
	}
}

// finish moves the subscription to its terminal state. A concurrent Cancel
// wins over completion and failure.
func (s *Subscription) finish(ctx context.Context, err error) SubscriptionState {
	next := Completed
	switch {
	case ctx.Err() != nil || apperrors.IsCancelled(err):
		next = Cancelled
	case err != nil:
		next = Failed
	}
	if !s.state.CompareAndSwap(int32(Active), int32(next)) {
		next = s.State()
	}
	switch next {
	case Failed:
		s.err = err
	case Cancelled:
		s.err = apperrors.Cancelled(context.Canceled)
	}
	return next
}

func failure(state SubscriptionState, err error) error {
	if state == Failed {
		return err
	}
	return nil
}

// deliver calls a consumer's OnValue. A panic fails the subscription.
func deliver[T any](ctx context.Context, fn func(context.Context, T), v T) error {
	_, err := callOperator(ctx, "subscriber", func() (struct{}, error) {
		fn(ctx, v)
		return struct{}{}, nil
	})
	return err
}

func callback(log *logger.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("subscriber callback panicked", logger.Fields(
				logger.FieldOperation, name,
				logger.FieldError, fmt.Sprint(r),
			))
		}
	}()
	fn()
}
