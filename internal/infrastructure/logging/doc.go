// Package logging provides structured logging for the scene engine.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same default fields and level filtering.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Colourised text output for development (via tint)
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
//	logger.Info("scene executed", "scene", "cinema-mode")
//	logger.Warn("device command failed", "device", "light-1", "error", err)
package logging
