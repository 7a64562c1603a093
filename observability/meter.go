package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/flowkit/logger"
)

// InstrumentationName is the meter and tracer name used by the stream engine.
const InstrumentationName = "github.com/kbukum/flowkit/stream"

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// Enabled turns on the OTLP exporter. When false the global no-op provider stays in place.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServiceName is the name of the service.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	// Insecure allows insecure connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// StreamMetrics holds the instruments the stream engine records into.
// A nil *StreamMetrics records nothing.
type StreamMetrics struct {
	subscriptionsStarted metric.Int64Counter
	subscriptionsEnded   metric.Int64Counter
	subscriptionsActive  metric.Int64UpDownCounter
	subscriptionDuration metric.Float64Histogram
	valuesDelivered      metric.Int64Counter
	handoffs             metric.Int64Counter
	hotEmissions         metric.Int64Counter
}

// NewStreamMetrics creates stream instruments on the given meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	started, err := meter.Int64Counter("stream.subscriptions.started",
		metric.WithDescription("Subscriptions started, by dispatcher"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.subscriptions.started counter: %w", err)
	}

	ended, err := meter.Int64Counter("stream.subscriptions.ended",
		metric.WithDescription("Subscriptions that reached a terminal state, by state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.subscriptions.ended counter: %w", err)
	}

	active, err := meter.Int64UpDownCounter("stream.subscriptions.active",
		metric.WithDescription("Subscriptions currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.subscriptions.active gauge: %w", err)
	}

	duration, err := meter.Float64Histogram("stream.subscription.duration",
		metric.WithDescription("Lifetime of subscriptions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.subscription.duration histogram: %w", err)
	}

	delivered, err := meter.Int64Counter("stream.values.delivered",
		metric.WithDescription("Values delivered to subscribers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.values.delivered counter: %w", err)
	}

	handoffs, err := meter.Int64Counter("stream.handoffs",
		metric.WithDescription("Pipeline segments moved to another dispatcher"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.handoffs counter: %w", err)
	}

	emissions, err := meter.Int64Counter("stream.hot.emissions",
		metric.WithDescription("Values emitted into broadcast and state streams"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.hot.emissions counter: %w", err)
	}

	return &StreamMetrics{
		subscriptionsStarted: started,
		subscriptionsEnded:   ended,
		subscriptionsActive:  active,
		subscriptionDuration: duration,
		valuesDelivered:      delivered,
		handoffs:             handoffs,
		hotEmissions:         emissions,
	}, nil
}

// RecordSubscriptionStart counts a new subscription on dispatcher.
func (m *StreamMetrics) RecordSubscriptionStart(ctx context.Context, dispatcher string) {
	if m == nil {
		return
	}
	m.subscriptionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrDispatcher, dispatcher)))
	m.subscriptionsActive.Add(ctx, 1)
}

// RecordSubscriptionEnd records the terminal state, lifetime and delivered value count.
func (m *StreamMetrics) RecordSubscriptionEnd(ctx context.Context, dispatcher, state string, delivered int64, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrDispatcher, dispatcher),
		attribute.String(AttrState, state),
	)
	m.subscriptionsActive.Add(ctx, -1)
	m.subscriptionsEnded.Add(ctx, 1, attrs)
	m.subscriptionDuration.Record(ctx, d.Seconds(), attrs)
	if delivered > 0 {
		m.valuesDelivered.Add(ctx, delivered, metric.WithAttributes(attribute.String(AttrDispatcher, dispatcher)))
	}
}

// RecordHandoff counts a segment crossing from one dispatcher to another.
func (m *StreamMetrics) RecordHandoff(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.handoffs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordHotEmission counts a value pushed into a hot stream of the given kind.
func (m *StreamMetrics) RecordHotEmission(ctx context.Context, kind string, subscribers int) {
	if m == nil {
		return
	}
	m.hotEmissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrKind, kind),
		attribute.Int(AttrSubscribers, subscribers),
	))
}

var (
	streamMetricsOnce sync.Once
	streamMetrics     *StreamMetrics
)

// Stream returns the process-wide stream instruments built on the global
// meter provider. Instruments created before InitMeter forward to the
// provider once it is installed.
func Stream() *StreamMetrics {
	streamMetricsOnce.Do(func() {
		m, err := NewStreamMetrics(Meter(InstrumentationName))
		if err != nil {
			logger.Warn("stream metrics unavailable", logger.ErrorFields("new_stream_metrics", err))
			m = nil
		}
		streamMetrics = m
	})
	return streamMetrics
}
