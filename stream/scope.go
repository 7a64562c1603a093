package stream

import (
	"context"
	"sync"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
)

// Scope owns a group of subscriptions that end together, typically the
// collections of one screen.
type Scope struct {
	name       string
	ctx        context.Context
	cancel     context.CancelFunc
	dispatcher Dispatcher

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// ScopeOption configures NewScope.
type ScopeOption func(*Scope)

// ScopeOn makes d the default dispatcher of everything launched in the scope.
func ScopeOn(d Dispatcher) ScopeOption {
	return func(s *Scope) { s.dispatcher = d }
}

// ScopeName names the scope in logs.
func ScopeName(name string) ScopeOption {
	return func(s *Scope) { s.name = name }
}

// NewScope creates a scope whose subscriptions are cancelled when parent is.
func NewScope(parent context.Context, opts ...ScopeOption) *Scope {
	ctx, cancel := context.WithCancel(parent)
	s := &Scope{
		name:   "scope",
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Context returns the scope's context. It is done once the scope is cancelled.
func (s *Scope) Context() context.Context { return s.ctx }

// Launch subscribes src inside the scope.
func Launch[T any](s *Scope, src *Source[T], c Consumer[T], opts ...SubscribeOption) *Subscription {
	if s.dispatcher != nil {
		opts = append([]SubscribeOption{On(s.dispatcher)}, opts...)
	}
	sub := src.Subscribe(s.ctx, c, opts...)
	s.track(sub)
	return sub
}

// Go runs fn as a task of the scope. A returned error is logged.
func (s *Scope) Go(fn func(ctx context.Context) error) *Subscription {
	task := New(func(ctx context.Context, _ Emit[struct{}]) error {
		return fn(ctx)
	}).Named(s.name + "-task")
	return Launch(s, task, Consumer[struct{}]{
		OnError: func(err error) {
			logger.Get("stream").Warn("scope task failed", logger.Fields(
				"scope", s.name,
				logger.FieldError, err.Error(),
			))
		},
	})
}

func (s *Scope) track(sub *Subscription) {
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	go func() {
		<-sub.Done()
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	}()
}

// Active returns the number of subscriptions still running.
func (s *Scope) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Cancel cancels every subscription of the scope, including later launches.
func (s *Scope) Cancel() {
	s.cancel()
	logger.Get("stream").Debug("scope cancelled", logger.Fields("scope", s.name))
}

// Wait blocks until every subscription launched so far has ended.
func (s *Scope) Wait(ctx context.Context) error {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		var err error
		Suspend(ctx, func() {
			select {
			case <-sub.Done():
			case <-ctx.Done():
				err = apperrors.Cancelled(ctx.Err())
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}
