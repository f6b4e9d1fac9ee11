package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log line and trace resource.
const ServiceName = "company-portal"

// NewLogger returns the process logger: JSON to stderr, level from LOG_LEVEL.
func NewLogger() (*zap.Logger, error) {
	return loggerConfig(os.Getenv("LOG_LEVEL"), "stderr").Build()
}

// loggerConfig is the production config with an ISO8601 "timestamp" key and the
// service name on every entry.
func loggerConfig(level string, outputPaths ...string) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = parseLogLevel(level)
	cfg.InitialFields = map[string]any{"service": ServiceName}
	cfg.OutputPaths = outputPaths
	return cfg
}

// parseLogLevel maps LOG_LEVEL to a zap level. Unknown or empty values mean INFO.
func parseLogLevel(s string) zap.AtomicLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARN", "WARNING":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
