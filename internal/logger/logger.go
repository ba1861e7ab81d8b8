// Package logger provides the process-wide structured logger: zap to
// console plus a rotated JSON file via lumberjack, matching the ambient
// logging stack of the teacher's platform.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.Logger
	globalSugar  *zap.SugaredLogger
	mu           sync.RWMutex
)

// Config holds logger configuration, populated from internal/config.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	LogDir     string // directory for log files (empty = no file logging)
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig returns sensible defaults for an always-on control daemon.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		LogDir:     "./logs",
		MaxSizeMB:  20,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Compress:   true,
	}
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	stdoutEnc := zapcore.NewConsoleEncoder(encCfg)
	if cfg.Format == "json" {
		stdoutEnc = zapcore.NewJSONEncoder(encCfg)
	}
	var cores []zapcore.Core
	cores = append(cores, zapcore.NewCore(stdoutEnc, zapcore.AddSync(os.Stdout), level))

	if cfg.LogDir != "" {
		if mkErr := os.MkdirAll(cfg.LogDir, 0o755); mkErr != nil {
			return fmt.Errorf("logger: create log dir: %w", mkErr)
		}
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "winderd.log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(fileWriter), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	globalLogger = l
	globalSugar = l.Sugar()
	mu.Unlock()
	return nil
}

// Get returns the global zap.Logger, falling back to a development
// logger if Init has not run yet (e.g. in tests).
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return globalLogger
}

func sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if globalSugar == nil {
		l, _ := zap.NewDevelopment()
		return l.Sugar()
	}
	return globalSugar
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// --- Convenience functions (key/value pairs, SugaredLogger style) ---

func Info(msg string, kv ...interface{})  { sugar().Infow(msg, kv...) }
func Warn(msg string, kv ...interface{})  { sugar().Warnw(msg, kv...) }
func Error(msg string, kv ...interface{}) { sugar().Errorw(msg, kv...) }
func Debug(msg string, kv ...interface{}) { sugar().Debugw(msg, kv...) }
func Fatal(msg string, kv ...interface{}) { sugar().Fatalw(msg, kv...) }

// --- Context loggers ---

// WithAxis returns a logger tagged with the motion axis ("x" or "y").
func WithAxis(axis string) *zap.Logger {
	return Get().With(zap.String("axis", axis))
}

// WithPin returns a logger tagged with a logical GPIO pin.
func WithPin(pin int) *zap.Logger {
	return Get().With(zap.Int("pin", pin))
}

// Writer returns an io.Writer that writes to the logger at Info level,
// for adapting fiber's request logger or other stdlib-style writers.
func Writer() io.Writer {
	return &logWriter{}
}

type logWriter struct{}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}
	Get().Info(msg)
	return len(p), nil
}
