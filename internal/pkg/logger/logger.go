// internal/pkg/logger/logger.go
package logger

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/your-org/shopsphere-backend/internal/config"
)

// New builds the process-wide logrus logger from the logging section of the config
func New(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
