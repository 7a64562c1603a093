package screens

import (
	"context"

	"github.com/kbukum/flowkit/stream"
)

var coldFlow = &screen{
	name:        "cold-flow",
	description: "three cold builders, each collected twice; a third build is never collected",
	run:         runColdFlow,
}

func runColdFlow(ctx context.Context, s *session) error {
	builders := []struct {
		step  string
		build func(s *session) *stream.Source[int]
	}{
		{"new", coldProducer},
		{"of", coldOf},
		{"from-slice", coldFromSlice},
	}
	for _, b := range builders {
		for round := 1; round <= 2; round++ {
			err := collect(ctx, s, b.build(s), func(ctx context.Context, v int) {
				s.emit(ctx, Event{Step: b.step, Value: v, Message: roundLabel(round)})
			})
			if err != nil {
				return err
			}
			if err := stream.Delay(ctx, s.env.ticks(1)); err != nil {
				return err
			}
		}
		// built but never collected, so it never starts
		_ = b.build(s)
	}
	return nil
}

func roundLabel(round int) string {
	if round == 1 {
		return "first collection"
	}
	return "second collection"
}

func started(ctx context.Context, s *session, step string) {
	s.note(ctx, step, "cold stream started")
}

func coldProducer(s *session) *stream.Source[int] {
	return stream.New(func(ctx context.Context, emit stream.Emit[int]) error {
		if err := stream.Delay(ctx, s.env.ticks(20)); err != nil {
			return err
		}
		started(ctx, s, "new")
		for i := 1; i <= 5; i++ {
			if err := stream.Delay(ctx, s.env.ticks(10)); err != nil {
				return err
			}
			if err := emit(i); err != nil {
				return err
			}
		}
		return nil
	}).Named("cold.new")
}

func coldOf(s *session) *stream.Source[int] {
	return pace(s, doubled(s, "of", stream.Of(1, 2, 3, 4, 5)))
}

func coldFromSlice(s *session) *stream.Source[int] {
	return pace(s, doubled(s, "from-slice", stream.FromSlice([]int{10, 20, 30, 40, 50})))
}

func doubled(s *session, step string, src *stream.Source[int]) *stream.Source[int] {
	return stream.Map(stream.WithIndex(src), func(ctx context.Context, v stream.Indexed[int]) (int, error) {
		if v.Index == 0 {
			started(ctx, s, step)
		}
		return v.Value * 2, nil
	})
}

func pace(s *session, src *stream.Source[int]) *stream.Source[int] {
	return stream.Tap(src, func(ctx context.Context, _ int) error {
		return stream.Delay(ctx, s.env.ticks(10))
	})
}
