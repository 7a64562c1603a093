// Package screens holds the demo scenarios. A screen behaves like a small
// view-model: it owns a stream.Scope on the main dispatcher, publishes its
// UI state through a stream.State or its events through a stream.Broadcast,
// and forwards every observable change as an Event.
//
// Timings are expressed in ticks so the same scenario can run at demo speed
// or fast enough for tests.
package screens
