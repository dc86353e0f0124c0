// internal/logging/logging.go
package logging

import (
	"fmt"
	"io"

	"github.com/jason-s-yu/negotiator/internal/config"
	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger from cfg.
func Setup(cfg config.LoggingConfig) error {
	return Configure(log.StandardLogger(), cfg)
}

// Configure applies level and formatter to logger.
func Configure(logger *log.Logger, cfg config.LoggingConfig) error {
	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("logging: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("logging: unknown format %q", cfg.Format)
	}
	return nil
}

// Discard returns a logger that drops everything, for quiet batch runs.
func Discard() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}
