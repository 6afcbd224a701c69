// Package applog provides centralized logging functionality using zap logger.
package applog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger

// Init initializes the package-level logger. In debug mode it uses a
// human-readable console encoder; otherwise a structured JSON encoder
// suitable for shipping to a log aggregator.
func Init(debug bool) error {
	var encoderConfig zapcore.EncoderConfig
	var level zapcore.Level
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		level = zapcore.DebugLevel
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		level = zapcore.InfoLevel
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.LevelKey = "level"
	encoderConfig.MessageKey = "message"
	encoderConfig.CallerKey = "caller"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	var encoder zapcore.Encoder
	if debug {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	baseLogger = zap.New(core, zap.AddCaller())
	log = baseLogger.Sugar()
	return nil
}

// GetSugaredLogger returns the sugared logger instance, falling back to a
// production default if Init was never called (e.g. in unit tests).
func GetSugaredLogger() *zap.SugaredLogger {
	if log == nil {
		baseLogger, _ = zap.NewProduction()
		log = baseLogger.Sugar()
	}
	return log
}

// Sync flushes any buffered log entries.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

func Debug(args ...interface{}) { GetSugaredLogger().Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().Debug(args...) }

func Debugf(template string, args ...interface{}) {
	GetSugaredLogger().Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().Debugf(template, args...)
}

func Info(args ...interface{}) { GetSugaredLogger().Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().Info(args...) }

func Infof(template string, args ...interface{}) {
	GetSugaredLogger().Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().Infof(template, args...)
}

func Warn(args ...interface{}) { GetSugaredLogger().Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().Warn(args...) }

func Warnf(template string, args ...interface{}) {
	GetSugaredLogger().Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().Warnf(template, args...)
}

func Error(args ...interface{}) { GetSugaredLogger().Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().Error(args...) }

func Errorf(template string, args ...interface{}) {
	GetSugaredLogger().Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().Errorf(template, args...)
}
