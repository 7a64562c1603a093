// Package stream is a concurrent stream engine.
//
// A Source is a cold recipe: every Subscribe runs its producer from the
// start on a dispatcher task, independent of any other subscription.
// Operators (Map, Filter, FlatMapLatest, Zip, Merge, ...) are generic
// functions that wrap one Source in another and run inline in the
// subscriber's task. Broadcast and State are hot: they exist independently
// of their subscribers and multicast what is emitted into them.
//
// # Dispatchers
//
// Work runs on a Dispatcher. The standard Dispatchers are main (one carrier),
// computation (GOMAXPROCS carriers) and blocking-io. A task holds a carrier
// while it runs and releases it at every suspension point (Delay, hand-offs,
// Broadcast rendezvous), so tasks on one dispatcher interleave
// cooperatively. FlowOn moves the upstream part of a pipeline onto another
// dispatcher.
//
// # Outcomes
//
// Each subscription ends exactly once: Completed, Failed or Cancelled.
// Failures carry an *errors.AppError whose code is one of SOURCE_FAILURE,
// OPERATOR_FAILURE or COMBINATOR_FAILURE. Cancellation is not a failure and
// fires no callback.
//
//	sub := stream.Map(api.GetNumbers(time.Second), square).Subscribe(ctx, stream.Consumer[int]{
//		OnValue: func(ctx context.Context, v int) { fmt.Println(v) },
//	})
//	defer sub.Cancel()
package stream
