// internal/logging/logging.go
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the application logger. It is usable before Init with logrus defaults.
var Log = logrus.New()

// Init configures the package logger with a specific level.
func Init(level string) {
	Log = NewLogger(level)
}

// NewLogger returns a JSON logger writing to stdout at the given level.
func NewLogger(level string) *logrus.Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo returns a JSON logger writing to out.
func NewLoggerTo(out io.Writer, level string) *logrus.Logger {
	var log = logrus.New()

	// Using JSON format for structured logging.
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(out)
	log.SetLevel(ParseLevel(level))
	return log
}

// ParseLevel maps a config level string to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// InitTo configures the package logger to write to out.
func InitTo(out io.Writer, level string) {
	Log = NewLoggerTo(out, level)
}
