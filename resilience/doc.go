// Package resilience provides the backoff, concurrency-limiting and rate
// primitives the stream engine builds on.
//
//   - Retry re-runs a failing operation with exponential backoff. The stream
//     Retry operator uses it to re-subscribe a failed upstream.
//   - Bulkhead bounds how many tasks run at once. Each stream dispatcher is a
//     bulkhead whose slots are its carriers.
//   - RateLimiter is a token bucket used by the stream RateLimit operator.
//
// Every wait can be routed through a caller-supplied WaitFunc so that a
// stream task gives up its carrier while it sleeps.
package resilience
