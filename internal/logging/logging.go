// Package logging builds the process logger and adapts it to types.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
)

// New creates a JSON slog.Logger writing to stdout at the given level.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: LevelFromString(level),
	})

	return slog.New(handler)
}

// LevelFromString maps debug, info, warn and error to slog levels. Anything
// else is info.
func LevelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type adapter struct {
	l *slog.Logger
}

// Adapt exposes l through the types.Logger interface used by the storage and
// queue packages.
func Adapt(l *slog.Logger) types.Logger {
	return adapter{l: l}
}

func (a adapter) Debug(msg string)                  { a.l.Debug(msg) }
func (a adapter) Debugf(format string, args ...any) { a.l.Debug(fmt.Sprintf(format, args...)) }
func (a adapter) Info(msg string)                   { a.l.Info(msg) }
func (a adapter) Infof(format string, args ...any)  { a.l.Info(fmt.Sprintf(format, args...)) }
func (a adapter) Warn(msg string)                   { a.l.Warn(msg) }
func (a adapter) Warnf(format string, args ...any)  { a.l.Warn(fmt.Sprintf(format, args...)) }
func (a adapter) Error(msg string)                  { a.l.Error(msg) }
func (a adapter) Errorf(format string, args ...any) { a.l.Error(fmt.Sprintf(format, args...)) }

func (a adapter) WithField(key string, value any) types.Logger {
	return adapter{l: a.l.With(key, value)}
}

func (a adapter) WithFields(fields map[string]any) types.Logger {
	args := make([]any, 0, len(fields)*2)

	for k, v := range fields {
		args = append(args, k, v)
	}

	return adapter{l: a.l.With(args...)}
}
