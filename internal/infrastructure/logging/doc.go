// Package logging provides structured logging for the PON bike bridge.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same fields and format.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("coordinator").Info("refresh complete", "bikes", 2)
//
// # Security
//
// Never log OAuth tokens. The vendor client logs only whether an
// Authorization header was present.
package logging
