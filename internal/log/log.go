// Package log builds the hub logger from configuration.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/rmacdonaldsmith/websubhub/internal/config"
)

// New creates a logrus logger writing to stderr or to a rotated file
func New(cfg config.Log) *logrus.Logger {
	logger := logrus.New()

	var writer io.Writer
	if cfg.File == "" || cfg.File == "-" {
		writer = os.Stderr
	} else {
		writer = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20,
			MaxBackups: 5,
			MaxAge:     28,
		}
	}
	logger.Out = writer

	switch cfg.Formatter {
	case "json":
		logger.Formatter = &logrus.JSONFormatter{}
	default:
		logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}

	switch cfg.Level {
	case "debug":
		logger.Level = logrus.DebugLevel
	case "warn":
		logger.Level = logrus.WarnLevel
	case "error":
		logger.Level = logrus.ErrorLevel
	default:
		logger.Level = logrus.InfoLevel
	}

	return logger
}
