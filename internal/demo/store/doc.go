// Package store is the local user cache of the demo, kept in a pebble
// database. Reads and writes are cold streams so screens can compose them
// with remote calls and move them to the blocking-io dispatcher.
package store
