package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/resilience"
)

// Dispatcher names an execution context and starts tasks on it.
type Dispatcher interface {
	// Name identifies the dispatcher in logs and metrics.
	Name() string
	// Dispatch runs task asynchronously on this dispatcher.
	Dispatch(ctx context.Context, task func(ctx context.Context))
}

// Well-known dispatcher names.
const (
	MainName        = "main"
	ComputationName = "computation"
	BlockingIOName  = "blocking-io"
	UnconfinedName  = "unconfined"
)

// Pool is a dispatcher with a fixed number of carriers. A task holds one
// carrier while it runs and gives it up at every suspension point, so at
// most Parallelism tasks of a pool execute at the same time.
type Pool struct {
	name  string
	slots *resilience.Bulkhead
	tasks sync.WaitGroup
}

// NewPool creates a pool dispatcher with parallelism carriers.
func NewPool(name string, parallelism int) *Pool {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Pool{
		name: name,
		slots: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          name,
			MaxConcurrent: parallelism,
			MaxWait:       -1,
		}),
	}
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Parallelism returns the number of carriers.
func (p *Pool) Parallelism() int { return p.slots.MaxConcurrent() }

// Busy returns the number of carriers currently held.
func (p *Pool) Busy() int { return p.slots.InUse() }

// Dispatch starts task on a new goroutine once a carrier is free. If ctx is
// done before a carrier frees up, task still runs, without a carrier, so it
// can observe the cancellation and finish.
func (p *Pool) Dispatch(ctx context.Context, task func(ctx context.Context)) {
	p.tasks.Add(1)
	go func() {
		defer p.tasks.Done()
		c := &carrier{pool: p}
		_ = c.acquire(ctx)
		defer c.release()
		task(context.WithValue(ctx, carrierKey{}, c))
	}()
}

// Wait blocks until every task dispatched so far has returned or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type unconfined struct{}

func (unconfined) Name() string { return UnconfinedName }

func (unconfined) Dispatch(ctx context.Context, task func(ctx context.Context)) {
	go task(ctx)
}

// Unconfined runs every task on its own goroutine with no carrier limit.
var Unconfined Dispatcher = unconfined{}

type dispatcherKey struct{}

// CurrentDispatcher reports the dispatcher the calling task runs on, or nil
// outside of any stream task.
func CurrentDispatcher(ctx context.Context) Dispatcher {
	d, _ := ctx.Value(dispatcherKey{}).(Dispatcher)
	return d
}

// launch starts task on d. The task never inherits its parent's carrier.
func launch(ctx context.Context, d Dispatcher, task func(ctx context.Context)) {
	ctx = context.WithValue(ctx, dispatcherKey{}, d)
	ctx = context.WithValue(ctx, carrierKey{}, (*carrier)(nil))
	d.Dispatch(ctx, task)
}

// dispatcherFor picks the dispatcher child tasks of ctx should run on.
func dispatcherFor(ctx context.Context) Dispatcher {
	if d := CurrentDispatcher(ctx); d != nil {
		return d
	}
	return DefaultDispatchers().Computation
}

// Dispatchers is the standard set of pools.
type Dispatchers struct {
	Main        *Pool
	Computation *Pool
	BlockingIO  *Pool
}

// NewDispatchers builds the three standard pools from cfg.
func NewDispatchers(cfg Config) *Dispatchers {
	cfg.ApplyDefaults()
	return &Dispatchers{
		Main:        NewPool(MainName, 1),
		Computation: NewPool(ComputationName, cfg.ComputationParallelism),
		BlockingIO:  NewPool(BlockingIOName, cfg.BlockingIOParallelism),
	}
}

// Lookup returns the dispatcher with the given name.
func (d *Dispatchers) Lookup(name string) (Dispatcher, bool) {
	switch name {
	case MainName:
		return d.Main, true
	case ComputationName:
		return d.Computation, true
	case BlockingIOName:
		return d.BlockingIO, true
	case UnconfinedName:
		return Unconfined, true
	}
	return nil, false
}

func (d *Dispatchers) pools() []*Pool {
	return []*Pool{d.Main, d.Computation, d.BlockingIO}
}

// Name implements component.Component.
func (d *Dispatchers) Name() string { return "dispatchers" }

// Start implements component.Component.
func (d *Dispatchers) Start(ctx context.Context) error {
	logger.Get("stream").Info("dispatchers ready", logger.Fields(
		MainName, d.Main.Parallelism(),
		ComputationName, d.Computation.Parallelism(),
		BlockingIOName, d.BlockingIO.Parallelism(),
	))
	return nil
}

// Stop waits for in-flight tasks until ctx is done. Callers cancel their
// subscriptions first.
func (d *Dispatchers) Stop(ctx context.Context) error {
	for _, p := range d.pools() {
		if err := p.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for %s tasks: %w", p.Name(), err)
		}
	}
	return nil
}

// Health implements component.Component.
func (d *Dispatchers) Health(ctx context.Context) component.Health {
	status := component.StatusHealthy
	msg := ""
	for _, p := range d.pools() {
		msg += fmt.Sprintf("%s=%d/%d ", p.Name(), p.Busy(), p.Parallelism())
		if p.Busy() == p.Parallelism() && p != d.Main {
			status = component.StatusDegraded
		}
	}
	return component.Health{Name: d.Name(), Status: status, Message: msg[:len(msg)-1]}
}

// Describe implements component.Describable.
func (d *Dispatchers) Describe() component.Description {
	return component.Description{
		Name:    "Dispatchers",
		Type:    "scheduler",
		Details: fmt.Sprintf("computation=%d blocking-io=%d", d.Computation.Parallelism(), d.BlockingIO.Parallelism()),
	}
}

var (
	defaultMu          sync.Mutex
	defaultDispatchers *Dispatchers
)

// DefaultDispatchers returns the process-wide pools, building them from
// DefaultConfig on first use.
func DefaultDispatchers() *Dispatchers {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultDispatchers == nil {
		defaultDispatchers = NewDispatchers(DefaultConfig())
	}
	return defaultDispatchers
}

// SetDefaultDispatchers replaces the process-wide pools. Call it during
// startup, before any subscription relies on the default.
func SetDefaultDispatchers(d *Dispatchers) {
	defaultMu.Lock()
	defaultDispatchers = d
	defaultMu.Unlock()
}
