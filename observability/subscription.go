package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/flowkit/errors"
)

// SubscriptionTrace follows one subscription from start to its terminal state.
// Metrics may be nil, in which case only the span is recorded.
type SubscriptionTrace struct {
	ID         string
	Dispatcher string
	StartTime  time.Time
	Metrics    *StreamMetrics

	span trace.Span
}

// StartSubscription opens a span for the subscription and counts it as active.
func StartSubscription(ctx context.Context, id, dispatcher string, metrics *StreamMetrics) (context.Context, *SubscriptionTrace) {
	ctx, span := StartSpan(ctx, SpanSubscription, trace.WithAttributes(
		attribute.String(AttrSubscriptionID, id),
		attribute.String(AttrDispatcher, dispatcher),
	))
	if metrics != nil {
		metrics.RecordSubscriptionStart(ctx, dispatcher)
	}
	return ctx, &SubscriptionTrace{
		ID:         id,
		Dispatcher: dispatcher,
		StartTime:  time.Now(),
		Metrics:    metrics,
		span:       span,
	}
}

// End closes the span and records the terminal state.
func (st *SubscriptionTrace) End(ctx context.Context, state string, delivered int64, err error) {
	st.span.SetAttributes(
		attribute.String(AttrState, state),
		attribute.Int64(AttrDelivered, delivered),
	)
	if err != nil {
		if code := errors.CodeOf(err); code != "" {
			st.span.SetAttributes(attribute.String(AttrErrorCode, string(code)))
		}
		SetSpanError(st.span, err)
	}
	st.span.End()

	if st.Metrics != nil {
		st.Metrics.RecordSubscriptionEnd(ctx, st.Dispatcher, state, delivered, st.Duration())
	}
}

// Span returns the subscription span.
func (st *SubscriptionTrace) Span() trace.Span {
	return st.span
}

// Duration returns the elapsed time since the subscription started.
func (st *SubscriptionTrace) Duration() time.Duration {
	return time.Since(st.StartTime)
}
