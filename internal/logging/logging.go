// Package logging builds the process logger: JSON lines appended to a rotating
// log file, plus an optional human-readable console copy on stderr.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log keys. Every entry that mirrors a write to the editor or the model
// carries one of these in its "key" field.
const (
	KeyToVim    = "tovim"
	KeyToLLM    = "tollm"
	KeyTPS      = "tps"
	KeyRetrieve = "retrieve"
	KeyDebug    = "debug"
)

// Options configures New.
type Options struct {
	FilePath string // log file; empty disables the file core
	Debug    bool   // enable debug-level entries
	Console  bool   // mirror entries to stderr
}

// New returns a logger writing to the configured sinks. With no sinks it
// returns a no-op logger.
func New(opts Options) *zap.Logger {
	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}

	var cores []zapcore.Core
	if opts.FilePath != "" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.MessageKey = "log"
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}
	if opts.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}
	return zap.New(zapcore.NewTee(cores...))
}

// Key tags an entry with one of the log keys.
func Key(k string) zap.Field {
	return zap.String("key", k)
}
