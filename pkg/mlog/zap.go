package mlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// ZapLogger wraps a zap.SugaredLogger behind the Logger interface, in the
// same shape the teacher's ZapWithTraceLogger wraps otelzap.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// Options configures Initialize.
type Options struct {
	// Debug raises the level to Debug regardless of Production.
	Debug bool
	// Production selects a JSON encoder; otherwise a human-readable
	// console encoder is used.
	Production bool
	// LogFilePath, if set, tees output through lumberjack for local
	// rotation in addition to stderr.
	LogFilePath string
}

// Initialize builds a Logger from Options. Mirrors the teacher's
// InitializeLogger: dev vs production zap.Config, Debug option override,
// stacktrace disabled for noise control. Initialize reads no environment
// variables itself.
func Initialize(opts Options) (Logger, error) {
	var zapCfg zap.Config
	if opts.Production {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if opts.Debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	zapCfg.DisableStacktrace = true

	encoder := zapcore.NewConsoleEncoder(zapCfg.EncoderConfig)
	if opts.Production {
		encoder = zapcore.NewJSONEncoder(zapCfg.EncoderConfig)
	}

	writer := zapcore.Lock(zapcore.AddSync(os.Stderr))
	if opts.LogFilePath != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.LogFilePath,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
		writer = zapcore.NewMultiWriteSyncer(writer, fileWriter)
	}

	core := zapcore.NewCore(encoder, writer, zapCfg.Level)

	logger := zap.New(core, zap.AddCallerSkip(1))

	return &ZapLogger{sugar: logger.Sugar()}, nil
}

func (l *ZapLogger) Info(args ...any)                  { l.sugar.Info(args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Error(args ...any)                 { l.sugar.Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
func (l *ZapLogger) Warn(args ...any)                  { l.sugar.Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Debug(args ...any)                 { l.sugar.Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Fatal(args ...any)                 { l.sugar.Fatal(args...) }
func (l *ZapLogger) Fatalf(format string, args ...any) { l.sugar.Fatalf(format, args...) }

func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(fields...)}
}

func (l *ZapLogger) Sync() error { return l.sugar.Sync() }
