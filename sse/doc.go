// Package sse serves streams to HTTP clients as Server-Sent Events.
//
// Server is a gin-based component that owns the listener. Handler turns any
// Source into a gin handler: every request gets its own subscription, values
// are written as data frames, and a failure is reported as an "error" event
// carrying the AppError response body. A client disconnect cancels the
// subscription.
//
//	srv := sse.NewServer(cfg, "flowdemo")
//	srv.Stream("/streams/state", "state", sse.Handler(state.Source(), sse.JSON[string]()))
package sse
