// Package observability owns the process-wide CLI logger.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by commands and the launcher. It is a no-op
// logger until InitCLILogger runs.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger for the named service. Output goes to
// stderr so stdout stays free for plan and JSONL output.
func InitCLILogger(service string, verbose bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	CLILogger = NewLogger(service, level)
}

// InitCLILoggerLevel is InitCLILogger with an explicit level name
// (debug, info, warn, error). Unknown names fall back to info.
func InitCLILoggerLevel(service, levelName string) {
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		level = zapcore.InfoLevel
	}
	CLILogger = NewLogger(service, level)
}

// NewLogger builds a console logger writing to stderr at the given level.
func NewLogger(service string, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core).With(zap.String("service", service))
}

// Sync flushes buffered log entries; errors from syncing a terminal are ignored.
func Sync() {
	_ = CLILogger.Sync()
}
