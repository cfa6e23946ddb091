package types

// Logger is the structured logger used by the storage and queue plugins.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...any)
	Info(msg string)
	Infof(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debug(string)                       {}
func (NoopLogger) Debugf(string, ...any)              {}
func (NoopLogger) Info(string)                        {}
func (NoopLogger) Infof(string, ...any)               {}
func (NoopLogger) Warn(string)                        {}
func (NoopLogger) Warnf(string, ...any)               {}
func (NoopLogger) Error(string)                       {}
func (NoopLogger) Errorf(string, ...any)              {}
func (l NoopLogger) WithField(string, any) Logger     { return l }
func (l NoopLogger) WithFields(map[string]any) Logger { return l }
