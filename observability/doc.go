// Package observability wires OpenTelemetry tracing and metrics into the
// stream engine.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("flowdemo"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, &cfg)
//	defer mp.Shutdown(ctx)
//
// Every subscription opens a "stream.subscription" span and records into
// observability.Stream(), which is backed by the global meter provider and
// is a no-op until InitMeter installs an exporter.
package observability
