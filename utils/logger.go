package utils

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/cppla/carecircle/config"
)

var (
	// Logger is the global structured logger
	Logger = zap.NewNop()
	// Sugar is a sugared logger for convenience
	Sugar = Logger.Sugar()
)

// RollingFile describes the lumberjack sink shared by the application and access logs.
type RollingFile struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func rollingFileFrom(cfg config.AppConfig) RollingFile {
	return RollingFile{
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}
}

// InitLogger initializes the global zap logger with console + rolling file outputs.
func InitLogger(cfg config.AppConfig) error {
	l, err := NewRollingFileLogger(rollingFileFrom(cfg), cfg.LogLevel, true)
	if err != nil {
		return err
	}
	if cfg.LogLevel == "debug" {
		l = l.WithOptions(zap.Development())
	}
	Logger = l
	Sugar = Logger.Sugar()
	return nil
}

// NewRollingFileLogger builds a JSON logger writing to rf.Path (when set) and, with console, stdout.
func NewRollingFileLogger(rf RollingFile, level string, console bool) (*zap.Logger, error) {
	enabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= parseLevel(level) })
	encoder := zapcore.NewJSONEncoder(encoderConfig())

	var cores []zapcore.Core
	if console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), enabler))
	}
	if rf.Path != "" {
		if dir := filepath.Dir(rf.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		lj := &lumberjack.Logger{
			Filename:   rf.Path,
			MaxSize:    nz(rf.MaxSizeMB, 100), // megabytes
			MaxBackups: nz(rf.MaxBackups, 3),
			MaxAge:     nz(rf.MaxAgeDays, 7), // days
			Compress:   rf.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(lj), enabler))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func nz(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
