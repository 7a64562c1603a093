package screens

import (
	"context"
	"fmt"

	"github.com/kbukum/flowkit/stream"
)

const (
	taskStarted   = "SomeLongRunningTaskStarted"
	taskCompleted = "LongRunningTaskCompleted"
)

var sharedFlow = &screen{
	name:        "shared-flow",
	description: "broadcast events, consecutive duplicates included",
	run:         runSharedFlow,
}

var stateFlow = &screen{
	name:        "state-flow",
	description: "state updates, consecutive duplicates suppressed",
	run:         runStateFlow,
}

// longRunningTask reports progress through publish.
func longRunningTask(ctx context.Context, s *session, publish func(ctx context.Context, v string) error) error {
	if err := publish(ctx, taskStarted); err != nil {
		return err
	}
	if err := stream.Delay(ctx, s.env.ticks(1)); err != nil {
		return err
	}
	if err := publish(ctx, taskStarted); err != nil {
		return err
	}
	if err := stream.Delay(ctx, s.env.ticks(30)); err != nil {
		return err
	}
	for i := 1; i <= 5; i++ {
		if err := publish(ctx, fmt.Sprintf("Downloading File %d", i)); err != nil {
			return err
		}
		if err := stream.Delay(ctx, s.env.ticks(20)); err != nil {
			return err
		}
	}
	return publish(ctx, taskCompleted)
}

func runSharedFlow(ctx context.Context, s *session) error {
	events := stream.NewBroadcast[string](stream.BroadcastName(s.name + ".events"))
	w := watch(s, events.Source(), func(ctx context.Context, v string) {
		s.value(ctx, "event", v)
	})
	// without replay only registered subscribers see an emission
	for events.SubscriberCount() == 0 {
		if err := stream.Delay(ctx, s.env.Tick); err != nil {
			return err
		}
	}

	emitted := 0
	task := s.scope.Go(func(ctx context.Context) error {
		return longRunningTask(ctx, s, func(ctx context.Context, v string) error {
			if err := events.Emit(ctx, v); err != nil {
				return err
			}
			emitted++
			return nil
		})
	})
	if err := task.Wait(ctx); err != nil {
		return err
	}
	return w.await(ctx, emitted)
}

func runStateFlow(ctx context.Context, s *session) error {
	state := stream.NewState("Initial value").Named(s.name + ".state")
	w := watch(s, state.Source(), func(ctx context.Context, v string) {
		s.value(ctx, "state", v)
	})
	same := func(a, b string) bool { return a == b }
	if err := w.await(ctx, 1); err != nil {
		return err
	}

	task := s.scope.Go(func(ctx context.Context) error {
		return longRunningTask(ctx, s, func(ctx context.Context, v string) error {
			changed, err := state.Set(ctx, v)
			if err != nil {
				return err
			}
			if !changed {
				s.note(ctx, "state", "%s unchanged, not emitted", v)
				return nil
			}
			// show every update before the task moves on
			return w.reached(ctx, v, same)
		})
	})
	if err := task.Wait(ctx); err != nil {
		return err
	}
	return w.reached(ctx, state.Value(), same)
}
