// Package logs configures the zap loggers used across mudra.
package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log level names accepted in configuration.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// DefaultFilename is the log file name inside Config.Dir.
const DefaultFilename = "mudra.log"

// Config controls where and how much is logged.
type Config struct {
	Level string
	// File enables the rotated log file in Dir.
	File     bool
	Dir      string
	Filename string
	// Console enables output to stderr.
	Console bool
	JSON    bool

	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultConfig returns console-only logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Console:    true,
		Filename:   DefaultFilename,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
}

// ParseLevel maps a level name to a zap level. Unknown names map to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LevelDebug, "trace":
		return zap.DebugLevel
	case LevelWarn, "warning":
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Setup builds a logger writing to the outputs enabled in cfg.
func Setup(cfg Config) (*zap.Logger, error) {
	level := ParseLevel(cfg.Level)

	var cores []zapcore.Core

	if cfg.Console {
		cores = append(cores, zapcore.NewCore(consoleEncoder(), zapcore.AddSync(os.Stderr), level))
	}

	if cfg.File {
		core, err := fileCore(cfg, level)
		if err != nil {
			return nil, fmt.Errorf("failed to create file core: %w", err)
		}
		cores = append(cores, core)
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("no log outputs configured")
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// FilePath returns the log file path for cfg.
func FilePath(cfg Config) string {
	name := cfg.Filename
	if name == "" {
		name = DefaultFilename
	}
	return filepath.Join(cfg.Dir, name)
}

func fileCore(cfg Config, level zapcore.Level) (zapcore.Core, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("log directory not set")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   FilePath(cfg),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var encoder zapcore.Encoder
	if cfg.JSON {
		encoder = jsonEncoder()
	} else {
		encoder = fileEncoder()
	}
	return zapcore.NewCore(encoder, zapcore.AddSync(writer), level), nil
}

func consoleEncoder() zapcore.Encoder {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func fileEncoder() zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	ec.ConsoleSeparator = " | "
	return zapcore.NewConsoleEncoder(ec)
}

func jsonEncoder() zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewJSONEncoder(ec)
}
