// Package definition holds the small collaborator interfaces the engine
// depends on but never constructs opinions about: logging today.
package definition

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging contract every engine component is handed at
// construction time. Implementations may wrap any backend; the default
// wraps logrus.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	// ToggleDebug enables or disables Debug/Debugf output, returning the
	// new state.
	ToggleDebug(enabled bool) bool
}

// LogrusLogger is the default Logger, backed by a *logrus.Logger.
type LogrusLogger struct {
	entry *logrus.Logger
}

// NewDefaultLogger builds the default logger used when the caller does not
// provide its own implementation. It writes to stderr with text formatting,
// matching the teacher's stderr-by-default convention.
func NewDefaultLogger() *LogrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &LogrusLogger{entry: l}
}

func (l *LogrusLogger) Info(v ...interface{})                   { l.entry.Info(v...) }
func (l *LogrusLogger) Infof(format string, v ...interface{})   { l.entry.Infof(format, v...) }
func (l *LogrusLogger) Warn(v ...interface{})                   { l.entry.Warn(v...) }
func (l *LogrusLogger) Warnf(format string, v ...interface{})   { l.entry.Warnf(format, v...) }
func (l *LogrusLogger) Error(v ...interface{})                  { l.entry.Error(v...) }
func (l *LogrusLogger) Errorf(format string, v ...interface{})  { l.entry.Errorf(format, v...) }
func (l *LogrusLogger) Fatal(v ...interface{})                  { l.entry.Fatal(v...) }
func (l *LogrusLogger) Fatalf(format string, v ...interface{})  { l.entry.Fatalf(format, v...) }

func (l *LogrusLogger) Debug(v ...interface{}) {
	l.entry.Debug(v...)
}

func (l *LogrusLogger) Debugf(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

func (l *LogrusLogger) ToggleDebug(enabled bool) bool {
	if enabled {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
	return enabled
}
