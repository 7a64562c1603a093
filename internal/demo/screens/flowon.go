package screens

import (
	"context"

	"github.com/kbukum/flowkit/stream"
)

var flowOn = &screen{
	name:        "flow-on",
	description: "reports the dispatcher every segment of a FlowOn chain runs on",
	run:         runFlowOn,
}

func runFlowOn(ctx context.Context, s *session) error {
	ds := s.env.Dispatchers
	s.note(ctx, "start", "collecting on %s", ds.Main.Name())

	task := stream.New(func(ctx context.Context, emit stream.Emit[int]) error {
		segment(ctx, s, "source")
		if err := stream.Delay(ctx, s.env.ticks(20)); err != nil {
			return err
		}
		return emit(2)
	}).Named("flow-on.task")

	chain := stream.FlowOn(task, ds.Computation)
	chain = square(s, "map 1", report(s, "filter 1", chain))
	chain = stream.FlowOn(chain, ds.Computation)
	chain = stream.FlowOn(report(s, "filter 2", chain), ds.Main)
	chain = stream.FlowOn(square(s, "map 2", chain), ds.Computation)
	chain = square(s, "map 3", report(s, "filter 3", chain))

	err := collect(ctx, s, chain, func(ctx context.Context, v int) {
		segment(ctx, s, "collect")
		s.value(ctx, "result", v)
	})
	if err != nil {
		return err
	}
	s.note(ctx, "end", "collection finished")
	return nil
}

func segment(ctx context.Context, s *session, name string) {
	where := "none"
	if d := stream.CurrentDispatcher(ctx); d != nil {
		where = d.Name()
	}
	s.emit(ctx, Event{Step: name, Message: where})
}

func report(s *session, name string, src *stream.Source[int]) *stream.Source[int] {
	return stream.Tap(src, func(ctx context.Context, _ int) error {
		segment(ctx, s, name)
		return nil
	})
}

func square(s *session, name string, src *stream.Source[int]) *stream.Source[int] {
	return stream.Map(src, func(ctx context.Context, v int) (int, error) {
		segment(ctx, s, name)
		return v * v, nil
	})
}
