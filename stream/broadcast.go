package stream

import (
	"context"
	"sync"

	"github.com/kbukum/flowkit/observability"
)

// BroadcastOption configures NewBroadcast.
type BroadcastOption func(*broadcastOptions)

type broadcastOptions struct {
	name   string
	replay int
	extra  int
}

// Replay keeps the last n values for subscribers that arrive later.
func Replay(n int) BroadcastOption {
	return func(o *broadcastOptions) { o.replay = max(n, 0) }
}

// ExtraBuffer lets each subscriber fall up to n values behind, on top of the
// replay capacity, before Emit has to wait for it.
func ExtraBuffer(n int) BroadcastOption {
	return func(o *broadcastOptions) { o.extra = max(n, 0) }
}

// BroadcastName names the broadcast in logs and metrics.
func BroadcastName(name string) BroadcastOption {
	return func(o *broadcastOptions) { o.name = name }
}

// Broadcast is a hot stream that multicasts every emitted value to all of
// its current subscribers.
//
// Every subscriber owns a buffer of replay+extra values. Emit waits while
// any subscriber's buffer is full, so with no buffer at all the slowest
// subscriber sets the pace for everyone.
type Broadcast[T any] struct {
	opts broadcastOptions
	gate gate

	mu    sync.Mutex
	subs  map[*hotSubscriber[T]]struct{}
	cache []T
}

type hotSubscriber[T any] struct {
	ch   chan T
	done chan struct{}
}

// NewBroadcast creates a Broadcast. It keeps no values by default.
func NewBroadcast[T any](opts ...BroadcastOption) *Broadcast[T] {
	o := broadcastOptions{name: "broadcast"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broadcast[T]{
		opts: o,
		gate: newGate(),
		subs: make(map[*hotSubscriber[T]]struct{}),
	}
}

// Emit delivers v to every current subscriber and records it for replay.
// It returns once each subscriber has accepted v into its buffer.
func (b *Broadcast[T]) Emit(ctx context.Context, v T) error {
	if err := b.gate.lock(ctx); err != nil {
		return err
	}
	defer b.gate.unlock()

	subs := b.record(v)
	observability.Stream().RecordHotEmission(ctx, "broadcast", len(subs))
	for _, s := range subs {
		if _, err := send(ctx, s.ch, v, s.done); err != nil {
			return err
		}
	}
	return nil
}

// TryEmit delivers v only if no subscriber would have to be waited for. It
// never suspends and reports whether v was emitted.
func (b *Broadcast[T]) TryEmit(v T) bool {
	select {
	case b.gate <- struct{}{}:
	default:
		return false
	}
	defer b.gate.unlock()

	b.mu.Lock()
	for s := range b.subs {
		if len(s.ch) >= cap(s.ch) {
			b.mu.Unlock()
			return false
		}
	}
	b.mu.Unlock()

	// only emitters send and the gate is held, so the free slots stay free
	subs := b.record(v)
	for _, s := range subs {
		select {
		case s.ch <- v:
		case <-s.done:
		}
	}
	observability.Stream().RecordHotEmission(context.Background(), "broadcast", len(subs))
	return true
}

// record appends v to the replay cache and snapshots the subscribers.
func (b *Broadcast[T]) record(v T) []*hotSubscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opts.replay > 0 {
		b.cache = append(b.cache, v)
		if over := len(b.cache) - b.opts.replay; over > 0 {
			b.cache = append(b.cache[:0:0], b.cache[over:]...)
		}
	}
	subs := make([]*hotSubscriber[T], 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	return subs
}

// Source returns the subscribable side of b. Each subscription first
// receives the replay cache, oldest first, then every later emission. It
// never completes on its own.
func (b *Broadcast[T]) Source() *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		s := &hotSubscriber[T]{
			ch:   make(chan T, b.opts.replay+b.opts.extra),
			done: make(chan struct{}),
		}
		b.mu.Lock()
		b.subs[s] = struct{}{}
		replay := append([]T(nil), b.cache...)
		b.mu.Unlock()
		defer func() {
			close(s.done)
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
		}()

		for _, v := range replay {
			if err := emit(v); err != nil {
				return err
			}
		}
		for {
			v, _, err := recv(ctx, s.ch)
			if err != nil {
				return err
			}
			if err := emit(v); err != nil {
				return err
			}
		}
	}).Named(b.opts.name)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcast[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// ReplayCache returns a copy of the values a new subscriber would replay.
func (b *Broadcast[T]) ReplayCache() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]T(nil), b.cache...)
}

// ResetReplayCache forgets the replay values. Buffered values already handed
// to subscribers are still delivered.
func (b *Broadcast[T]) ResetReplayCache() {
	b.mu.Lock()
	b.cache = nil
	b.mu.Unlock()
}
