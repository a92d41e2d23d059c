// Package logger adapts zap to the engine's LoggerPort.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"formageddon/internal/application/port/output"
)

var _ output.LoggerPort = (*ZapLogger)(nil)

// ZapLogger writes structured JSON logs to a per-run file under ./log and
// mirrors warnings and errors to stderr.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// New creates a logger for one delivery run. The file name embeds the run
// name (letter id, usually), sanitized for the filesystem.
func New(runName string, debug bool) (*ZapLogger, error) {
	if err := os.MkdirAll("log", 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02_15-04-05"), sanitize(runName))
	file, err := os.Create(filepath.Join("log", filename))
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stderr), zapcore.WarnLevel),
	)

	base := zap.New(core)
	return &ZapLogger{sugar: base.Sugar(), base: base}, nil
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func (l *ZapLogger) WithField(key string, value any) output.LoggerPort {
	return &ZapLogger{sugar: l.sugar.With(key, value), base: l.base}
}

func (l *ZapLogger) WithFields(fields map[string]any) output.LoggerPort {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &ZapLogger{sugar: l.sugar.With(args...), base: l.base}
}

func (l *ZapLogger) Close() error {
	return l.base.Sync()
}

// sanitize makes a run name safe for the filesystem.
func sanitize(s string) string {
	result := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result = append(result, r)
		} else {
			result = append(result, '_')
		}
	}
	s = string(result)
	if s == "" {
		return "delivery"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
