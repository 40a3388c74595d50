// Package logging provides the structured logger used across the agent.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of logging behavior the rest of the module depends
// on. Components take this interface rather than *logrus.Logger directly so
// tests can swap in a no-op or buffering implementation.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// LogrusLogger adapts a *logrus.Entry to the Logger interface.
type LogrusLogger struct {
	entry *logrus.Entry
}

// New builds a LogrusLogger that writes JSON-free text lines to stderr at
// the given level. Level parsing falls back to Info on a bad string so a
// malformed config value never prevents the agent from starting.
func New(level string) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l *LogrusLogger) WithField(key string, value any) Logger {
	return &LogrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *LogrusLogger) WithFields(fields map[string]any) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *LogrusLogger) WithError(err error) Logger {
	return &LogrusLogger{entry: l.entry.WithError(err)}
}

func (l *LogrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *LogrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *LogrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *LogrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
