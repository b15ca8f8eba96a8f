// Package logging provides structured logging for the IoT portal.
//
// It wraps log/slog so every component logs with the same handler,
// default fields (service, version) and level filter.
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
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("starting portal", "port", 8080)
//	logger.Error("sync failed", "job", name, "error", err)
//
// Never log connection strings, SAS tokens or access keys.
package logging
