package utils

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides leveled, printf-style logging throughout the application.
type Logger struct {
	z *zap.SugaredLogger
}

// NewLogger creates a Logger writing coloured console lines to stdout, errors to stderr.
func NewLogger(level string) *Logger {
	lvl := zapcore.DebugLevel
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.CallerKey = ""
	enc := zapcore.NewConsoleEncoder(encCfg)

	enabled := zap.NewAtomicLevelAt(lvl)
	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return enabled.Enabled(l) && l < zapcore.ErrorLevel })
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return enabled.Enabled(l) && l >= zapcore.ErrorLevel })

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), low),
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), high),
	)
	return &Logger{z: zap.New(core).Sugar()}
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{z: zap.NewNop().Sugar()}
}

func (l *Logger) Info(format string, args ...any) {
	l.z.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.z.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.z.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.z.Debugf(format, args...)
}

// Printf lets the Logger stand in where a printf-style logger is expected.
func (l *Logger) Printf(format string, args ...any) {
	l.z.Infof(strings.TrimSuffix(format, "\n"), args...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.z.Sync()
}

// Fatal logs and exits with status 1.
func (l *Logger) Fatal(format string, args ...any) {
	l.z.Errorf(format, args...)
	l.Sync()
	os.Exit(1)
}
