// Package logger builds the zap loggers used by the command line tools.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func level(verbose, quiet bool) zapcore.Level {
	switch {
	case quiet:
		return zapcore.ErrorLevel
	case verbose:
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func consoleCore(verbose, quiet bool) zapcore.Core {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), level(verbose, quiet))
}

// New returns a console logger writing to stderr.
func New(verbose, quiet bool) *zap.SugaredLogger {
	return zap.New(consoleCore(verbose, quiet)).Sugar()
}

// NewWithFile tees the console logger into a rotated JSON log file. The
// file core always logs at debug level; verbose and quiet only shape the
// console output.
func NewWithFile(verbose, quiet bool, path string) *zap.SugaredLogger {
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}),
		zapcore.DebugLevel,
	)
	return zap.New(zapcore.NewTee(consoleCore(verbose, quiet), fileCore)).Sugar()
}
