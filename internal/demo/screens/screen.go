package screens

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/internal/demo/api"
	"github.com/kbukum/flowkit/internal/demo/store"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/stream"
	"github.com/kbukum/flowkit/uistate"
)

// DefaultTick is the tick length used by the CLI and the server.
const DefaultTick = 10 * time.Millisecond

// Env carries the collaborators every screen runs against.
type Env struct {
	API         *api.Client
	Store       *store.Store
	Dispatchers *stream.Dispatchers
	// Tick is the length of one unit of the scenario timings.
	Tick time.Duration
}

// ApplyDefaults fills unset collaborators with in-process defaults.
func (e *Env) ApplyDefaults() {
	if e.Tick <= 0 {
		e.Tick = DefaultTick
	}
	if e.Dispatchers == nil {
		e.Dispatchers = stream.DefaultDispatchers()
	}
	if e.API == nil {
		e.API = api.New(api.Config{Latency: 10 * e.Tick})
	}
	if e.Store == nil {
		e.Store = store.New(store.Config{InMemory: true})
	}
}

func (e Env) ticks(n int) time.Duration { return time.Duration(n) * e.Tick }

// Event is one observable change of a screen.
type Event struct {
	Screen  string                   `json:"screen"`
	Step    string                   `json:"step,omitempty"`
	Status  uistate.Kind             `json:"status,omitempty"`
	Value   any                      `json:"value,omitempty"`
	Error   *apperrors.ErrorResponse `json:"error,omitempty"`
	Message string                   `json:"message,omitempty"`
}

// String renders the event as one log line.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Screen)
	if e.Step != "" {
		b.WriteString(" [" + e.Step + "]")
	}
	if e.Status != "" {
		b.WriteString(" " + string(e.Status))
	}
	if e.Value != nil {
		fmt.Fprintf(&b, " %v", e.Value)
	}
	if e.Error != nil {
		fmt.Fprintf(&b, " %s: %s", e.Error.Error.Code, e.Error.Error.Message)
	}
	if e.Message != "" {
		b.WriteString(" " + e.Message)
	}
	return b.String()
}

// Output receives the events of a run. It may be called concurrently and
// may block; a blocking Output should wait inside stream.Suspend.
type Output func(ctx context.Context, e Event)

// Screen is a runnable scenario.
type Screen interface {
	Name() string
	Description() string
	// Run plays the scenario once and returns when every change it made has
	// been passed to out.
	Run(ctx context.Context, env Env, out Output) error
}

type screen struct {
	name        string
	description string
	run         func(ctx context.Context, s *session) error
}

func (sc *screen) Name() string        { return sc.name }
func (sc *screen) Description() string { return sc.description }

func (sc *screen) Run(ctx context.Context, env Env, out Output) error {
	env.ApplyDefaults()
	scope := stream.NewScope(ctx,
		stream.ScopeName(sc.name),
		stream.ScopeOn(env.Dispatchers.Main),
	)
	defer scope.Cancel()

	s := &session{
		name:  sc.name,
		env:   env,
		scope: scope,
		out:   out,
		log:   logger.Get("demo.screens").WithComponent(sc.name),
	}
	start := time.Now()
	err := sc.run(scope.Context(), s)
	fields := logger.DurationFields("run", time.Since(start))
	if err != nil {
		s.log.Warn("Screen failed", logger.MergeWithError(fields, err))
		return err
	}
	s.log.Debug("Screen finished", fields)
	return nil
}

var registry = []Screen{
	coldFlow,
	operators,
	flowOn,
	sharedFlow,
	stateFlow,
	singleNetworkCall,
	seriesNetworkCalls,
	roomDB,
}

// All returns every screen sorted by name.
func All() []Screen {
	out := append([]Screen(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Lookup finds a screen by name.
func Lookup(name string) (Screen, bool) {
	for _, sc := range registry {
		if sc.Name() == name {
			return sc, true
		}
	}
	return nil, false
}

// Stream turns a screen run into a cold stream of its events. Every
// subscription plays the scenario again.
func Stream(sc Screen, env Env) *stream.Source[Event] {
	return stream.New(func(ctx context.Context, emit stream.Emit[Event]) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		events := make(chan Event)
		run := stream.New(func(ctx context.Context, _ stream.Emit[struct{}]) error {
			return sc.Run(ctx, env, func(ctx context.Context, e Event) {
				stream.Suspend(ctx, func() {
					select {
					case events <- e:
					case <-ctx.Done():
					}
				})
			})
		}).Named("screen-run." + sc.Name())
		sub := run.Subscribe(ctx, stream.Consumer[struct{}]{}, stream.On(stream.Unconfined))

		for {
			var (
				e        Event
				err      error
				finished bool
			)
			stream.Suspend(ctx, func() {
				select {
				case e = <-events:
				case <-sub.Done():
					err, finished = sub.Err(), true
				case <-ctx.Done():
					err, finished = ctx.Err(), true
				}
			})
			if finished {
				return err
			}
			if err := emit(e); err != nil {
				return err
			}
		}
	}).Named("screen." + sc.Name())
}

// session is the state of one screen run.
type session struct {
	name  string
	env   Env
	scope *stream.Scope
	out   Output
	log   *logger.Logger
}

func (s *session) emit(ctx context.Context, e Event) {
	e.Screen = s.name
	s.out(ctx, e)
}

func (s *session) value(ctx context.Context, step string, v any) {
	s.emit(ctx, Event{Step: step, Value: v})
}

func (s *session) note(ctx context.Context, step, format string, args ...any) {
	s.emit(ctx, Event{Step: step, Message: fmt.Sprintf(format, args...)})
}

// collect runs src in the screen scope and waits for it to end.
func collect[T any](ctx context.Context, s *session, src *stream.Source[T], onValue func(ctx context.Context, v T)) error {
	sub := stream.Launch(s.scope, src, stream.Consumer[T]{OnValue: onValue})
	return sub.Wait(ctx)
}

// render is collect for a handler that can fail. A handler error ends the
// run with that error.
func render[T any](ctx context.Context, s *session, src *stream.Source[T], fn func(ctx context.Context, v T) error) error {
	sub := stream.Launch(s.scope, stream.Tap(src, fn), stream.Consumer[T]{})
	return sub.Wait(ctx)
}

// watcher tracks the values a scope subscription has handled.
type watcher[T any] struct {
	mu      sync.Mutex
	seen    int
	last    T
	changed chan struct{}
}

func watch[T any](s *session, src *stream.Source[T], fn func(ctx context.Context, v T)) *watcher[T] {
	w := &watcher[T]{changed: make(chan struct{})}
	stream.Launch(s.scope, src, stream.Consumer[T]{
		OnValue: func(ctx context.Context, v T) {
			fn(ctx, v)
			w.bump(v)
		},
	})
	return w
}

func (w *watcher[T]) bump(v T) {
	w.mu.Lock()
	w.seen++
	w.last = v
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()
}

// await waits until n values have been handled.
func (w *watcher[T]) await(ctx context.Context, n int) error {
	return w.until(ctx, func(seen int, _ T) bool { return seen >= n })
}

// reached waits until the last handled value matches want under equal.
func (w *watcher[T]) reached(ctx context.Context, want T, equal func(a, b T) bool) error {
	return w.until(ctx, func(seen int, last T) bool { return seen > 0 && equal(last, want) })
}

func (w *watcher[T]) until(ctx context.Context, done func(seen int, last T) bool) error {
	for {
		w.mu.Lock()
		if done(w.seen, w.last) {
			w.mu.Unlock()
			return nil
		}
		changed := w.changed
		w.mu.Unlock()

		var err error
		stream.Suspend(ctx, func() {
			select {
			case <-changed:
			case <-ctx.Done():
				err = apperrors.Cancelled(ctx.Err())
			}
		})
		if err != nil {
			return err
		}
	}
}

// uiState is a screen's UI state with a watcher forwarding every change as
// an event. A change is rendered before set returns.
type uiState[T any] struct {
	state *stream.State[uistate.State[T]]
	equal func(a, b uistate.State[T]) bool
	watch *watcher[uistate.State[T]]
}

func newUIState[T any](ctx context.Context, s *session, equal func(a, b T) bool) (*uiState[T], error) {
	u := &uiState[T]{
		equal: func(a, b uistate.State[T]) bool { return uistate.EqualFunc(a, b, equal) },
	}
	u.state = stream.NewStateFunc(uistate.NewLoading[T](), u.equal).Named(s.name + ".ui")
	u.watch = watch(s, u.state.Source(), func(ctx context.Context, st uistate.State[T]) {
		view := uistate.ToView[T](st)
		e := Event{Step: "ui", Status: view.Status, Error: view.Error}
		if view.Data != nil {
			e.Value = *view.Data
		}
		s.emit(ctx, e)
	})
	if err := u.flush(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *uiState[T]) set(ctx context.Context, v uistate.State[T]) error {
	if _, err := u.state.Set(ctx, v); err != nil {
		return err
	}
	return u.flush(ctx)
}

func (u *uiState[T]) loading(ctx context.Context) error { return u.set(ctx, uistate.NewLoading[T]()) }

func (u *uiState[T]) success(ctx context.Context, v T) error {
	return u.set(ctx, uistate.NewSuccess(v))
}

// catch records err as the UI state and ends the stream quietly. It is a
// stream.Catch handler.
func (u *uiState[T]) catch(ctx context.Context, err error) *stream.Source[T] {
	if setErr := u.set(ctx, uistate.NewFailure[T](err)); setErr != nil {
		return stream.Fail[T](setErr)
	}
	return stream.Empty[T]()
}

// flush waits until the watcher has rendered the current state.
func (u *uiState[T]) flush(ctx context.Context) error {
	return u.watch.reached(ctx, u.state.Value(), u.equal)
}
