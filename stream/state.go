package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kbukum/flowkit/observability"
)

// State is a hot stream that always holds a current value. Subscribers get
// the current value first and then later distinct values. Setting a value
// equal to the current one does nothing.
//
// Setters never wait for subscribers. Every subscriber has a mailbox holding
// only the latest undelivered value, so a slow subscriber skips straight to
// the current value.
type State[T any] struct {
	name  string
	equal func(a, b T) bool
	value atomic.Pointer[T]
	gate  gate

	mu   sync.Mutex
	subs map[*mailbox[T]]struct{}
}

// mailbox holds the latest value not yet taken by one subscriber.
type mailbox[T any] struct {
	mu      sync.Mutex
	pending T
	full    bool
	signal  chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{signal: make(chan struct{}, 1)}
}

// put overwrites any pending value and wakes the reader.
func (m *mailbox[T]) put(v T) {
	m.mu.Lock()
	m.pending, m.full = v, true
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.pending, m.full
	var zero T
	m.pending, m.full = zero, false
	return v, ok
}

// NewState creates a State compared with ==.
func NewState[T comparable](initial T) *State[T] {
	return NewStateFunc(initial, func(a, b T) bool { return a == b })
}

// NewStateFunc creates a State that uses equal to detect unchanged values.
func NewStateFunc[T any](initial T, equal func(a, b T) bool) *State[T] {
	s := &State[T]{
		name:  "state",
		equal: equal,
		gate:  newGate(),
		subs:  make(map[*mailbox[T]]struct{}),
	}
	s.value.Store(&initial)
	return s
}

// Named sets the name used in logs and metrics. Call it before subscribing.
func (s *State[T]) Named(name string) *State[T] {
	s.name = name
	return s
}

// Value returns the current value without locking.
func (s *State[T]) Value() T {
	return *s.value.Load()
}

// Set replaces the current value with v and notifies subscribers. It
// reports false, without notifying anyone, when v equals the current value.
// ctx only bounds the wait for concurrent setters.
func (s *State[T]) Set(ctx context.Context, v T) (bool, error) {
	if err := s.gate.lock(ctx); err != nil {
		return false, err
	}
	defer s.gate.unlock()
	if s.equal(s.Value(), v) {
		return false, nil
	}
	s.publish(ctx, v)
	return true, nil
}

// Update sets the value to fn(current) atomically with respect to other
// setters.
func (s *State[T]) Update(ctx context.Context, fn func(current T) T) (bool, error) {
	if err := s.gate.lock(ctx); err != nil {
		return false, err
	}
	defer s.gate.unlock()
	cur := s.Value()
	next := fn(cur)
	if s.equal(cur, next) {
		return false, nil
	}
	s.publish(ctx, next)
	return true, nil
}

// CompareAndSet sets v only if the current value equals expect.
func (s *State[T]) CompareAndSet(ctx context.Context, expect, v T) (bool, error) {
	if err := s.gate.lock(ctx); err != nil {
		return false, err
	}
	defer s.gate.unlock()
	cur := s.Value()
	if !s.equal(cur, expect) {
		return false, nil
	}
	if !s.equal(cur, v) {
		s.publish(ctx, v)
	}
	return true, nil
}

// publish stores v and drops it into every mailbox. The gate is held.
func (s *State[T]) publish(ctx context.Context, v T) {
	s.mu.Lock()
	s.value.Store(&v)
	for box := range s.subs {
		box.put(v)
	}
	n := len(s.subs)
	s.mu.Unlock()
	observability.Stream().RecordHotEmission(ctx, "state", n)
}

// SubscriberCount returns the number of active subscribers.
func (s *State[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Source returns the subscribable side of s. It never completes on its own.
// A subscriber gets the current value first. After that it never sees the
// same value twice in a row, but it may skip values set while it was busy.
func (s *State[T]) Source() *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		box := newMailbox[T]()
		s.mu.Lock()
		box.put(s.Value())
		s.subs[box] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, box)
			s.mu.Unlock()
		}()

		var (
			last      T
			delivered bool
		)
		for {
			v, ok := box.take()
			if !ok {
				if _, _, err := recv(ctx, box.signal); err != nil {
					return err
				}
				continue
			}
			if delivered && s.equal(last, v) {
				continue
			}
			if err := emit(v); err != nil {
				return err
			}
			last, delivered = v, true
		}
	}).Named(s.name)
}
