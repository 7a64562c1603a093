// Package uistate models the outcome a screen renders: still loading, a
// value, or an error. State is a closed set; Match forces every caller to
// handle all three cases.
package uistate
