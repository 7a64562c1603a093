package stream

import (
	"context"
)

// FlattenConcat subscribes to each inner source only after the previous one
// completed. An inner failure fails the whole stream and the remaining
// inners are never subscribed.
func FlattenConcat[T any](outer *Source[*Source[T]]) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		g := &guard[T]{emit: emit}
		return outer.observe(ctx, func(inner *Source[T]) error {
			if inner == nil {
				return nil
			}
			err := inner.observe(ctx, g.next)
			if err == nil || g.downstream(err) {
				return err
			}
			return branchError(ctx, "flatten-concat", err, nil)
		})
	}).Named("flatten-concat")
}

// FlattenMerge subscribes to every inner source as soon as it arrives and
// forwards values in arrival order. It completes when the outer and every
// inner completed. The first failure cancels everything else.
func FlattenMerge[T any](outer *Source[*Source[T]], opts ...MergeOption) *Source[T] {
	o := mergeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return New(func(ctx context.Context, emit Emit[T]) error {
		return mergeInner(ctx, emit, outer, o.concurrency, "flatten-merge")
	}).Named("flatten-merge")
}

// FlattenLatest keeps only the most recent inner source subscribed. Each new
// outer value cancels the active inner before the next one starts, and
// values still in flight from a superseded inner are dropped.
func FlattenLatest[T any](outer *Source[*Source[T]]) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		return latestInner(ctx, emit, outer)
	}).Named("flatten-latest")
}

// FlatMapConcat maps each value to a source and concatenates them.
func FlatMapConcat[T, R any](src *Source[T], fn func(v T) *Source[R]) *Source[R] {
	return FlattenConcat(toSources(src, "flat-map-concat", fn)).Named("flat-map-concat")
}

// FlatMapMerge maps each value to a source and merges them.
func FlatMapMerge[T, R any](src *Source[T], fn func(v T) *Source[R], opts ...MergeOption) *Source[R] {
	return FlattenMerge(toSources(src, "flat-map-merge", fn), opts...).Named("flat-map-merge")
}

// FlatMapLatest maps each value to a source and follows only the latest one.
func FlatMapLatest[T, R any](src *Source[T], fn func(v T) *Source[R]) *Source[R] {
	return FlattenLatest(toSources(src, "flat-map-latest", fn)).Named("flat-map-latest")
}

func toSources[T, R any](src *Source[T], op string, fn func(v T) *Source[R]) *Source[*Source[R]] {
	return New(func(ctx context.Context, emit Emit[*Source[R]]) error {
		return src.observe(ctx, func(v T) error {
			inner, err := callOperator(ctx, op, func() (*Source[R], error) { return fn(v), nil })
			if err != nil {
				return err
			}
			return emit(inner)
		})
	}).Named(op)
}

type latestEvent[T any] struct {
	gen uint64
	val T
	err error
}

// latestInner drives FlattenLatest. The outer runs as a child task. Switching
// to a new inner and delivering downstream both happen under one gate, and
// every event carries the generation of the inner that produced it. Outer
// failures use generation 0.
func latestInner[T any](ctx context.Context, emit Emit[T], outer *Source[*Source[T]]) error {
	cctx, cancel := context.WithCancel(ctx)
	d := dispatcherFor(ctx)
	events := make(chan latestEvent[T])
	g := newGate()
	var gen uint64

	outerDone := make(chan struct{})
	launch(cctx, d, func(octx context.Context) {
		var (
			innerCancel context.CancelFunc
			innerDone   chan struct{}
		)
		defer close(outerDone)
		defer func() {
			if innerDone != nil {
				join(octx, innerDone)
			}
		}()

		err := outer.observe(octx, func(inner *Source[T]) error {
			if err := g.lock(octx); err != nil {
				return err
			}
			if innerCancel != nil {
				innerCancel()
			}
			prevDone := innerDone
			gen++
			my := gen
			ictx, icancel := context.WithCancel(octx)
			done := make(chan struct{})
			innerCancel, innerDone = icancel, done
			g.unlock()

			if prevDone != nil {
				join(octx, prevDone)
			}
			if inner == nil {
				close(done)
				return nil
			}
			launch(ictx, d, func(ictx context.Context) {
				defer close(done)
				err := inner.observe(ictx, func(v T) error {
					_, err := send(ictx, events, latestEvent[T]{gen: my, val: v}, nil)
					return err
				})
				if err = branchError(ictx, "flatten-latest", err, nil); err != nil && ictx.Err() == nil {
					_, _ = send(ictx, events, latestEvent[T]{gen: my, err: err}, nil)
				}
			})
			return nil
		})
		if err != nil && octx.Err() == nil {
			_, _ = send(octx, events, latestEvent[T]{err: err}, nil)
		}
	})
	defer func() {
		cancel()
		join(ctx, outerDone)
	}()

	for {
		var (
			ev       latestEvent[T]
			finished bool
		)
		Suspend(ctx, func() {
			select {
			case ev = <-events:
			case <-outerDone:
				finished = true
			case <-ctx.Done():
			}
		})
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case finished:
			return nil
		}

		if err := g.lock(ctx); err != nil {
			return err
		}
		if ev.gen != 0 && ev.gen != gen {
			g.unlock()
			continue
		}
		if ev.err != nil {
			g.unlock()
			return ev.err
		}
		err := emit(ev.val)
		g.unlock()
		if err != nil {
			return err
		}
	}
}
