// Package logging provides structured logging for iotbridge.
//
// It wraps Go's standard log/slog package to give every component the
// same machine-parsable output with default fields.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("adapter started", "protocol", "mqtt")
//
// Never log secrets: broker credentials and tokens stay out of fields.
package logging
