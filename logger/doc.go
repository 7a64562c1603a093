// Package logger provides structured logging for flowkit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields. The stream engine logs
// through logger.Get("stream").
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("screens")
//	log.Info("state updated", logger.Fields(logger.FieldStream, "users"))
package logger
