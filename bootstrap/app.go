package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/stream"
)

// componentLoggers are registered from the logging config when the app
// initializes logging itself.
var componentLoggers = []string{"bootstrap", "component", "config", "sse", "stream"}

// App drives one process. C is the config type; any struct embedding
// config.ServiceConfig qualifies.
type App[C Config] struct {
	Name        string
	Version     string
	Cfg         C
	Components  *component.Registry
	Dispatchers *stream.Dispatchers
	Logger      *logger.Logger
	Summary     *Summary

	gracefulTimeout time.Duration
	showSummary     bool
	loggers         []string
	onConfigure     []func(ctx context.Context, app *App[C]) error
	telemetry       []func(ctx context.Context) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp validates cfg, initializes logging and installs dispatcher pools
// sized by cfg's stream section as the process default. The pools are the
// first registered component, so they stop last.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	base := cfg.GetServiceConfig()
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(),
		Dispatchers:     stream.NewDispatchers(base.Stream),
		gracefulTimeout: 15 * time.Second,
		showSummary:     !o.quiet,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(base.Logging)
		logger.RegisterDefaults(componentLoggers...)
		app.loggers = componentLoggers
		app.Logger = logger.Get("bootstrap")
	}

	stream.SetDefaultDispatchers(app.Dispatchers)
	if err := app.Components.Register(app.Dispatchers); err != nil {
		return nil, err
	}

	app.Summary = NewSummary(base.Name, base.Version)
	if o.summaryOut != nil {
		app.Summary.SetOutput(o.summaryOut)
	}
	return app, nil
}

// RegisterComponent adds a component after the dispatchers.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure registers a callback for the configure phase, after
// components started. Screens and routes are built here.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck fails when any component reports unhealthy. Degraded
// components pass.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusUnhealthy {
			detail := h.Name
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts the app and blocks until SIGINT, SIGTERM or ctx is done.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		a.abort()
		return err
	}
	a.Logger.Info("application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

// RunTask starts the app, runs task and shuts down when it returns. A
// signal cancels the task's context.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		a.abort()
		return err
	}

	taskCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	taskErr := task(taskCtx)
	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.initTelemetry(ctx); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return fmt.Errorf("configuration failed: %w", err)
		}
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("ready check reported issues", logger.ErrorFields("ready_check", err))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	if a.showSummary {
		a.DisplaySummary()
	}
	return nil
}

// initTelemetry installs the OTLP meter and tracer providers the config
// enables. Without them the engine records into no-op instruments.
func (a *App[C]) initTelemetry(ctx context.Context) error {
	base := a.Cfg.GetServiceConfig()
	if base.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, &base.Metrics)
		if err != nil {
			return err
		}
		a.telemetry = append(a.telemetry, mp.Shutdown)
	}
	if base.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, base.Tracing)
		if err != nil {
			return err
		}
		a.telemetry = append(a.telemetry, tp.Shutdown)
	}
	return nil
}

// DisplaySummary prints the startup summary.
func (a *App[C]) DisplaySummary() {
	a.Summary.Display(a.Components)
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx is done.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
		return nil
	}
}

// Shutdown stops the app. Use it when driving the lifecycle by hand.
func (a *App[C]) Shutdown(ctx context.Context) error {
	return a.stop()
}

// abort releases what a failed startup acquired.
func (a *App[C]) abort() {
	if err := a.stop(); err != nil {
		a.Logger.Warn("cleanup after failed startup", logger.ErrorFields("stop", err))
	}
}

func (a *App[C]) stop() error {
	a.Logger.Info("shutting down", logger.Fields("timeout", a.gracefulTimeout.String()))
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var errs []error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("onStop hook error", logger.ErrorFields("on_stop", err))
		errs = append(errs, err)
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("shutdown completed with errors", logger.ErrorFields("stop_all", err))
		errs = append(errs, err)
	}
	for i := len(a.telemetry) - 1; i >= 0; i-- {
		if err := a.telemetry[i](ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	a.telemetry = nil

	a.Logger.Info("application shutdown complete")
	for _, name := range a.loggers {
		logger.Unregister(name)
	}
	a.loggers = nil
	return errors.Join(errs...)
}
