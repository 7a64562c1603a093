package stream

import (
	"context"
	"time"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/resilience"
)

// Retry re-subscribes to src when it fails upstream, backing off between
// attempts as configured. Values emitted by a failed attempt have already
// been delivered. Downstream failures and cancellation are never retried.
func Retry[T any](src *Source[T], cfg resilience.RetryConfig) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		g := &guard[T]{emit: emit}
		retryIf := cfg.RetryIf
		onRetry := cfg.OnRetry

		run := cfg
		run.Wait = Delay
		run.RetryIf = func(err error) bool {
			if g.downstream(err) || ctx.Err() != nil || apperrors.IsCancelled(err) {
				return false
			}
			if retryIf != nil {
				return retryIf(err)
			}
			return true
		}
		run.OnRetry = func(attempt int, err error, backoff time.Duration) {
			logger.Get("stream").WithContext(ctx).Warn("retrying source", logger.Fields(
				logger.FieldStream, src.Name(),
				"attempt", attempt,
				"backoff_ms", backoff.Milliseconds(),
				logger.FieldError, err.Error(),
			))
			if onRetry != nil {
				onRetry(attempt, err, backoff)
			}
		}
		return resilience.RetryFunc(ctx, run, func() error {
			return src.observe(ctx, g.next)
		})
	}).Named("retry")
}

// RateLimit spaces values so that at most rate values per second pass, with
// bursts of up to burst values. The limiter is per subscription.
func RateLimit[T any](src *Source[T], rate float64, burst int) *Source[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  src.Name(),
			Rate:  rate,
			Burst: burst,
			Wait:  Delay,
		})
		return src.observe(ctx, func(v T) error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			return emit(v)
		})
	}).Named("rate-limit")
}
