// Package logging builds the zap logger used across the sync.
// Lines look like `[2006-01-02 15:04:05] [SUCCESS] message` and are written
// to stdout and to a size-rotated, append-only log file.
package logging

import (
	"os"
	"time"

	"raindrop_sync/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02 15:04:05"

// New returns a logger and a cleanup func that flushes and closes the log file.
func New(cfg config.LogConfig) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}

	logger := NewWithWriters(level, zapcore.Lock(os.Stdout), zapcore.AddSync(file))
	cleanup := func() {
		_ = logger.Sync()
		_ = file.Close()
	}
	return logger, cleanup, nil
}

func NewWithWriters(level zapcore.Level, writers ...zapcore.WriteSyncer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.NewMultiWriteSyncer(writers...),
		level,
	)
	return zap.New(core)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       bracketTime,
		EncodeLevel:      statusLevel,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func bracketTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + t.Format(timeLayout) + "]")
}

func statusLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + StatusOf(l) + "]")
}

// StatusOf maps a zap level to the status word written in the log file.
func StatusOf(l zapcore.Level) string {
	switch {
	case l < zapcore.InfoLevel:
		return "DEBUG"
	case l == zapcore.InfoLevel:
		return "SUCCESS"
	case l == zapcore.WarnLevel:
		return "WARNING"
	default:
		return "ERROR"
	}
}
