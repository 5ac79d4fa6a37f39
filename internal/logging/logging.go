// Package logging builds the process logger: JSON lines on stdout, which
// Lambda forwards to the function's CloudWatch log group.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"trailnotify/internal/types"
)

// ParseLevel maps a LOG_LEVEL value to a slog.Level. Unknown values fall back
// to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a structured JSON logger writing to w.
func New(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: false,
	})
	return slog.New(handler)
}

// Adapter wraps *slog.Logger to implement types.Logger. slog.Logger already
// has Info, Warn and Error, but its With returns *slog.Logger.
type Adapter struct {
	logger *slog.Logger
}

// NewAdapter wraps l.
func NewAdapter(l *slog.Logger) *Adapter {
	return &Adapter{logger: l}
}

func (a *Adapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *Adapter) With(args ...any) types.Logger {
	return &Adapter{logger: a.logger.With(args...)}
}

// Slog returns the wrapped logger.
func (a *Adapter) Slog() *slog.Logger { return a.logger }

var _ types.Logger = (*Adapter)(nil)
