package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelTrace = slog.Level(-8)

	logFileName       = "block_syncer.log"
	logFileMaxSizeMB  = 5
	logFileMaxBackups = 5
)

// DefaultLogger wraps slog.logger and implements AppLogger.
type DefaultLogger struct {
	logger *slog.Logger
	closer io.Closer
}

// NewAppDefaultLogger creates a DefaultLogger writing to stdout and, when
// log.dir is set, to a size-rotated file inside that directory.
func NewAppDefaultLogger() *DefaultLogger {
	level := parseLogLevel(viper.GetString("log.level"))
	dir := strings.TrimSpace(viper.GetString("log.dir"))
	if dir == "" {
		return NewLogger(os.Stdout, level)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		l := NewLogger(os.Stdout, level)
		l.Warn("Log directory unavailable; logging to stdout only", "dir", dir, "err", err)
		return l
	}
	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
	}
	l := NewLogger(io.MultiWriter(os.Stdout, rotating), level)
	l.closer = rotating
	return l
}

// NewLogger builds a text logger on w at the given level.
func NewLogger(w io.Writer, level slog.Level) *DefaultLogger {
	return &DefaultLogger{
		logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, AddSource: false})),
	}
}

// Close releases the rotating log file, if any.
func (l *DefaultLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *DefaultLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, withSource(args)...)
}

func (l *DefaultLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, withSource(args)...)
}

func (l *DefaultLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, withSource(args)...)
}

func (l *DefaultLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, withSource(args)...)
}

func (l *DefaultLogger) Trace(msg string, args ...any) {
	l.logger.Log(context.Background(), LevelTrace, msg, withSource(args)...)
}

func (l *DefaultLogger) Fatal(msg string, args ...any) {
	l.logger.Error(msg, withSource(args)...)
	_ = l.Close()
	os.Exit(1)
}

// withSource prepends the caller of the public logging method.
func withSource(args []any) []any {
	src := callerSource(2)
	if src == "" {
		return args
	}
	return append([]any{"source", src}, args...)
}

func callerSource(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func parseLogLevel(s string) slog.Level {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
