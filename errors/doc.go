// Package errors provides the structured error type shared by flowkit packages.
//
// Every failure that leaves the stream engine is an *AppError whose Code tells
// a consumer which kind of outcome it is looking at: SOURCE_FAILURE,
// OPERATOR_FAILURE, COMBINATOR_FAILURE, or CANCELLED. Errors are classified
// once, where they originate; wrapping layers keep the original code.
package errors
