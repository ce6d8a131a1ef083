package runner

import "log/slog"

// slogLogger adapts *slog.Logger to the Logger interface so Runner can log
// through the ambient structured logger instead of a bespoke one.
type slogLogger struct{ l *slog.Logger }

// NewSlogLogger wraps logger as a runner.Logger. Pass it to WithLogger.
func NewSlogLogger(logger *slog.Logger) Logger {
	return slogLogger{l: logger}
}

func (s slogLogger) Info(msg string, keysAndValues ...interface{}) {
	s.l.Info(msg, keysAndValues...)
}

func (s slogLogger) Error(msg string, keysAndValues ...interface{}) {
	s.l.Error(msg, keysAndValues...)
}

func (s slogLogger) Debug(msg string, keysAndValues ...interface{}) {
	s.l.Debug(msg, keysAndValues...)
}
