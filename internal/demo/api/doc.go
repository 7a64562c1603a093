// Package api is a simulated remote user service used by the demo screens.
//
// Every call returns a cold stream: nothing happens until it is collected,
// and each collection performs a fresh request after the configured latency.
package api
