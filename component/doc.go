// Package component defines the lifecycle contract of the long-lived parts
// of a flowkit process: dispatcher pools, the SSE server and the demo store.
//
// A Registry starts components in registration order and stops them in
// reverse. Components may also implement Describable and RouteProvider to
// appear in the bootstrap startup summary.
package component
