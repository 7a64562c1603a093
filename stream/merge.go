package stream

import (
	"cmp"
	"context"
	"runtime"
	"slices"
	"sync"
)

// Merge subscribes to every source at once and forwards values in arrival
// order. It completes after all sources complete. The first failure cancels
// the remaining sources and fails the merge with COMBINATOR_FAILURE.
func Merge[T any](sources ...*Source[T]) *Source[T] {
	outer := FromSlice(sources)
	return New(func(ctx context.Context, emit Emit[T]) error {
		return mergeInner(ctx, emit, outer, 0, "merge")
	}).Named("merge")
}

// MergeOption configures FlattenMerge and FlatMapMerge.
type MergeOption func(*mergeOptions)

type mergeOptions struct {
	concurrency int
}

// MergeConcurrency bounds the number of inner sources subscribed at once.
// Further outer values wait for a slot. 0 means unbounded.
func MergeConcurrency(n int) MergeOption {
	return func(o *mergeOptions) { o.concurrency = n }
}

type mergeEvent[T any] struct {
	idx int
	val T
	err error
}

// mergeInner runs outer and every inner it emits as child tasks on the
// current dispatcher and forwards their values to emit from the calling task.
// Values that are ready together go out in the order their inners were
// subscribed.
func mergeInner[T any](ctx context.Context, emit Emit[T], outer *Source[*Source[T]], limit int, name string) error {
	cctx, cancel := context.WithCancel(ctx)
	d := dispatcherFor(ctx)
	events := make(chan mergeEvent[T])

	var slots chan struct{}
	if limit > 0 {
		slots = make(chan struct{}, limit)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	launch(cctx, d, func(octx context.Context) {
		defer wg.Done()
		next := 0
		err := outer.observe(octx, func(inner *Source[T]) error {
			if inner == nil {
				return nil
			}
			idx := next
			next++
			if slots != nil {
				if _, err := send(octx, slots, struct{}{}, nil); err != nil {
					return err
				}
			}
			wg.Add(1)
			launch(octx, d, func(ictx context.Context) {
				defer wg.Done()
				if slots != nil {
					defer func() { <-slots }()
				}
				err := inner.observe(ictx, func(v T) error {
					_, err := send(ictx, events, mergeEvent[T]{idx: idx, val: v}, nil)
					return err
				})
				if err = branchError(ictx, name, err, nil); err != nil && ictx.Err() == nil {
					_, _ = send(ictx, events, mergeEvent[T]{idx: idx, err: err}, nil)
				}
			})
			return nil
		})
		if err != nil && octx.Err() == nil {
			_, _ = send(octx, events, mergeEvent[T]{idx: -1, err: err}, nil)
		}
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	defer func() {
		cancel()
		join(ctx, done)
	}()

	var batch []mergeEvent[T]
	for {
		var (
			ev       mergeEvent[T]
			finished bool
		)
		Suspend(ctx, func() {
			select {
			case ev = <-events:
			case <-done:
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

		batch = append(batch[:0], ev)
		Suspend(ctx, func() { batch = drainReady(events, batch) })
		slices.SortStableFunc(batch, func(a, b mergeEvent[T]) int { return cmp.Compare(a.idx, b.idx) })
		for _, ev := range batch {
			if ev.err != nil {
				return ev.err
			}
			if err := emit(ev.val); err != nil {
				return err
			}
		}
	}
}

// drainReady appends the events whose senders are already waiting. It
// yields between passes so branches woken at the same instant can reach
// their send.
func drainReady[T any](events <-chan mergeEvent[T], batch []mergeEvent[T]) []mergeEvent[T] {
	for range 3 {
		runtime.Gosched()
		n := len(batch)
	drain:
		for {
			select {
			case ev := <-events:
				batch = append(batch, ev)
			default:
				break drain
			}
		}
		if len(batch) == n {
			break
		}
	}
	return batch
}
