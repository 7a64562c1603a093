package screens

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/kbukum/flowkit/stream"
)

var operators = &screen{
	name:        "operators",
	description: "transform, filter, combine and flatten operators on simulated API calls",
	run:         runOperators,
}

type operatorStep struct {
	name    string
	summary string
	run     func(ctx context.Context, s *session, ui *uiState[any]) error
}

var operatorSteps = []operatorStep{
	{"map", "multiply each number by 2", stepMap},
	{"filter", "keep numbers greater than 3", stepFilter},
	{"of-type", "even numbers become strings, only ints pass", stepOfType},
	{"with-index", "pair each value with its position", stepWithIndex},
	{"on-each", "side effect before every value", stepOnEach},
	{"merge", "interleave two timed streams", stepMerge},
	{"flat-map-merge", "run an inner stream per value concurrently", stepFlatMapMerge},
	{"flat-map-latest", "cancel the previous inner stream on every value", stepFlatMapLatest},
	{"zip", "pair values of two timed streams", stepZip},
	{"zip-parallel", "two API calls in parallel, results paired", stepZipParallel},
	{"flatten-concat", "two API calls in series", stepFlattenConcat},
	{"flat-map-concat", "one API call per number, in series", stepFlatMapConcat},
}

func runOperators(ctx context.Context, s *session) error {
	ui, err := newUIState(ctx, s, func(a, b any) bool { return reflect.DeepEqual(a, b) })
	if err != nil {
		return err
	}
	for _, step := range operatorSteps {
		s.note(ctx, step.name, "%s", step.summary)
		if err := step.run(ctx, s, ui); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		if err := ui.flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

func toAny[T any](src *stream.Source[T]) *stream.Source[any] {
	return stream.Map(src, func(_ context.Context, v T) (any, error) { return v, nil })
}

// show drives the UI state from src: loading first, then one success per
// value, or the failure.
func show(ctx context.Context, s *session, ui *uiState[any], src *stream.Source[any]) error {
	if err := ui.loading(ctx); err != nil {
		return err
	}
	return render(ctx, s, stream.Catch(src, ui.catch), ui.success)
}

// forward emits every value of src as an event of step.
func forward[T any](ctx context.Context, s *session, step string, src *stream.Source[T]) error {
	return collect(ctx, s, src, func(ctx context.Context, v T) {
		s.value(ctx, step, v)
	})
}

func stepMap(ctx context.Context, s *session, ui *uiState[any]) error {
	numbers := stream.FlowOn(s.env.API.GetNumbers(s.env.ticks(10)), s.env.Dispatchers.BlockingIO)
	doubled := stream.Map(numbers, func(_ context.Context, n int) (int, error) { return n * 2, nil })
	return show(ctx, s, ui, toAny(stream.FlowOn(doubled, s.env.Dispatchers.Computation)))
}

func stepFilter(ctx context.Context, s *session, ui *uiState[any]) error {
	numbers := stream.FlowOn(s.env.API.GetNumbers(s.env.ticks(10)), s.env.Dispatchers.BlockingIO)
	large := stream.Filter(numbers, func(n int) bool { return n > 3 })
	return show(ctx, s, ui, toAny(stream.FlowOn(large, s.env.Dispatchers.Computation)))
}

func stepOfType(ctx context.Context, s *session, ui *uiState[any]) error {
	numbers := stream.FlowOn(s.env.API.GetNumbers(s.env.ticks(10)), s.env.Dispatchers.BlockingIO)
	mixed := stream.Map(numbers, func(_ context.Context, n int) (any, error) {
		if n%2 == 0 {
			return strconv.Itoa(n), nil
		}
		return n, nil
	})
	ints := stream.OfType[any, int](mixed)
	return show(ctx, s, ui, toAny(stream.FlowOn(ints, s.env.Dispatchers.Computation)))
}

func stepWithIndex(ctx context.Context, s *session, _ *uiState[any]) error {
	return forward(ctx, s, "with-index", stream.WithIndex(stream.Of("a", "b", "c")))
}

func stepOnEach(ctx context.Context, s *session, _ *uiState[any]) error {
	src := stream.Tap(stream.Of("a", "b", "c"), func(ctx context.Context, v string) error {
		s.note(ctx, "on-each", "working on %s", v)
		return stream.Delay(ctx, s.env.ticks(20))
	})
	return forward(ctx, s, "on-each", src)
}

// marble plays values with the given pauses in ticks. A pause of 0 emits
// immediately.
func marble[T any](s *session, name string, pauses []int, values []T) *stream.Source[T] {
	return stream.New(func(ctx context.Context, emit stream.Emit[T]) error {
		for i, v := range values {
			if err := stream.Delay(ctx, s.env.ticks(pauses[i])); err != nil {
				return err
			}
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	}).Named(name)
}

//	time:  0   5   10   15   20   25   30   35   40   45   50
//	one:   1---|----|----2----3----|----4----|----5----|
//	two:   |---A----B----|----|----C----|----D----|----E----F
func stepMerge(ctx context.Context, s *session, _ *uiState[any]) error {
	one := marble(s, "merge.one", []int{0, 15, 5, 10, 10}, []int{1, 2, 3, 4, 5})
	two := marble(s, "merge.two", []int{5, 5, 15, 10, 10, 5}, []string{"A", "B", "C", "D", "E", "F"})
	return forward(ctx, s, "merge", stream.Merge(toAny(one), toAny(two)))
}

// Nested is a value of an inner stream tagged with the outer value that
// started it.
type Nested struct {
	Outer int    `json:"outer"`
	Index int    `json:"index"`
	Value string `json:"value"`
}

func (n Nested) String() string { return fmt.Sprintf("%d:%d:%s", n.Outer, n.Index, n.Value) }

func outerMarble(s *session) *stream.Source[int] {
	return marble(s, "outer", []int{0, 15, 10, 5}, []int{1, 2, 3, 4})
}

func innerMarble(s *session, outer int) *stream.Source[Nested] {
	inner := stream.WithIndex(marble(s, "inner", []int{0, 12}, []string{"A", "B"}))
	return stream.Map(inner, func(_ context.Context, v stream.Indexed[string]) (Nested, error) {
		return Nested{Outer: outer, Index: v.Index, Value: v.Value}, nil
	})
}

func stepFlatMapMerge(ctx context.Context, s *session, _ *uiState[any]) error {
	src := stream.FlatMapMerge(outerMarble(s), func(n int) *stream.Source[Nested] {
		return innerMarble(s, n)
	})
	return forward(ctx, s, "flat-map-merge", src)
}

func stepFlatMapLatest(ctx context.Context, s *session, _ *uiState[any]) error {
	src := stream.FlatMapLatest(outerMarble(s), func(n int) *stream.Source[Nested] {
		return innerMarble(s, n)
	})
	return forward(ctx, s, "flat-map-latest", src)
}

func paced[T any](s *session, pause int, values ...T) *stream.Source[T] {
	return stream.Tap(stream.Of(values...), func(ctx context.Context, _ T) error {
		return stream.Delay(ctx, s.env.ticks(pause))
	})
}

func stepZip(ctx context.Context, s *session, _ *uiState[any]) error {
	src := stream.Zip(paced(s, 10, 1, 2, 3), paced(s, 15, "a", "b", "c", "d"), func(n int, c string) string {
		return fmt.Sprintf("{%d,%s}", n, c)
	})
	return forward(ctx, s, "zip", src)
}

func stepZipParallel(ctx context.Context, s *session, ui *uiState[any]) error {
	client := s.env.API
	src := stream.Zip(client.GetNumbers(s.env.ticks(10)), client.GetAlphabets(s.env.ticks(20)), func(n int, c string) any {
		return []any{n, c}
	})
	return show(ctx, s, ui, stream.FlowOn(src, s.env.Dispatchers.BlockingIO))
}

func stepFlattenConcat(ctx context.Context, s *session, ui *uiState[any]) error {
	client := s.env.API
	calls := stream.Of(toAny(client.GetNumbers(s.env.ticks(10))), toAny(client.GetAlphabets(s.env.ticks(20))))
	return show(ctx, s, ui, stream.FlowOn(stream.FlattenConcat(calls), s.env.Dispatchers.BlockingIO))
}

func stepFlatMapConcat(ctx context.Context, s *session, ui *uiState[any]) error {
	client := s.env.API
	series := stream.FlatMapConcat(client.GetNumbers(0), func(n int) *stream.Source[any] {
		return stream.Concat(stream.Of[any](n), toAny(client.GetAlphabets(s.env.ticks(2))))
	})
	if err := ui.loading(ctx); err != nil {
		return err
	}
	var all []any
	src := stream.Catch(stream.FlowOn(series, s.env.Dispatchers.BlockingIO), ui.catch)
	return render(ctx, s, src, func(ctx context.Context, v any) error {
		all = append(all, v)
		return ui.success(ctx, slices.Clone(all))
	})
}
