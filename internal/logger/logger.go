package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bchfaucet/internal/config"
)

// FileEncoderConfig is the JSON layout of the daily log files. The log reader depends on the
// "timestamp" key holding an RFC3339 time.
func FileEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New builds a logger writing to stdout and to a daily JSON file under cfg.Dir.
// The returned func flushes and closes the file.
func New(cfg config.LogConfig, env string) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	file, err := NewDailyWriter(cfg.Dir, cfg.App, env, cfg.Retention)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	var console zapcore.Encoder
	if env == config.EnvProduction {
		console = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		console = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	core := zapcore.NewTee(
		zapcore.NewCore(console, zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(FileEncoderConfig()), file, level),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("env", env))

	cleanup := func() {
		_ = l.Sync()
		_ = file.Close()
	}
	return l, cleanup, nil
}
