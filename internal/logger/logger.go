package logger

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process-wide logger. It is a no-op until Initialize runs.
var Log = zap.NewNop()

// Initialize sets up the structured logger with file rotation.
// level: "debug", "info", "warn", "error" (default: "info").
// An empty file logs to stderr only.
func Initialize(level string, file string) (*zap.Logger, error) {
	lvl := parseLogLevel(level)

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		lvl,
	)
	cores := []zapcore.Core{consoleCore}

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, err
		}
		jsonConfig := zap.NewProductionEncoderConfig()
		jsonConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(jsonConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   file,
				MaxSize:    50, // megabytes
				MaxBackups: 5,
				MaxAge:     7, // days
				Compress:   true,
			}),
			lvl,
		))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	Log.Debug("Logger initialized", zap.String("level", lvl.String()), zap.String("file", file))
	return Log, nil
}

// Close flushes the logger before shutdown
func Close() error {
	return Log.Sync()
}

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Common field helpers

func Chat(id string) zap.Field     { return zap.String("chat", id) }
func Sender(id string) zap.Field   { return zap.String("sender", id) }
func Message(id string) zap.Field  { return zap.String("message_id", id) }
func Policy(name string) zap.Field { return zap.String("policy", name) }
