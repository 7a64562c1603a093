package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/flowkit/logger"
)

// Lazy opens an expensive resource on first use and keeps it until Close.
// A failed open is retried on the next call.
type Lazy[R any] struct {
	name  string
	open  func(ctx context.Context) (R, error)
	close func(R) error

	mu       sync.Mutex
	resource R
	ready    bool
}

// NewLazy returns a Lazy that builds its resource with open and releases it
// with closeFn. closeFn may be nil.
func NewLazy[R any](name string, open func(context.Context) (R, error), closeFn func(R) error) *Lazy[R] {
	return &Lazy[R]{name: name, open: open, close: closeFn}
}

// Name returns the resource name.
func (l *Lazy[R]) Name() string {
	return l.name
}

// Get returns the resource, opening it if needed.
func (l *Lazy[R]) Get(ctx context.Context) (R, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return l.resource, nil
	}

	r, err := l.open(ctx)
	if err != nil {
		var zero R
		return zero, fmt.Errorf("open %s: %w", l.name, err)
	}
	l.resource, l.ready = r, true
	logger.Get("component").Debug("lazy resource opened", logger.Fields(logger.FieldComponent, l.name))
	return r, nil
}

// Ready reports whether the resource is open.
func (l *Lazy[R]) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Health reports healthy once the resource is open. check, when non-nil,
// is run against the open resource.
func (l *Lazy[R]) Health(ctx context.Context, check func(context.Context, R) error) Health {
	l.mu.Lock()
	r, ready := l.resource, l.ready
	l.mu.Unlock()

	if !ready {
		return Health{Name: l.name, Status: StatusDegraded, Message: "not opened"}
	}
	if check != nil {
		if err := check(ctx, r); err != nil {
			return Health{Name: l.name, Status: StatusUnhealthy, Message: err.Error()}
		}
	}
	return Health{Name: l.name, Status: StatusHealthy}
}

// Close releases the resource if it was opened. A later Get opens it again.
func (l *Lazy[R]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready {
		return nil
	}
	var err error
	if l.close != nil {
		err = l.close(l.resource)
	}
	var zero R
	l.resource, l.ready = zero, false
	return err
}
