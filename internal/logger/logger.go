package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is a no-op until Init runs so packages
// can log from tests without setup.
var Log = zap.NewNop()

// Init initializes global logger with level from config
func Init(level string) {
	Log = build(level, "stdout")
}

// InitStderr is Init for processes whose stdout carries a protocol (MCP stdio).
func InitStderr(level string) {
	Log = build(level, "stderr")
}

func build(level, output string) *zap.Logger {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zap.DebugLevel
	case "info":
		lvl = zap.InfoLevel
	case "warn":
		lvl = zap.WarnLevel
	case "error":
		lvl = zap.ErrorLevel
	default:
		lvl = zap.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Encoding:         "json", // or "console"
		Level:            zap.NewAtomicLevelAt(lvl),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    encCfg,
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l
}
