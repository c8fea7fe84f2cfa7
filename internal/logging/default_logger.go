package logging

import (
	"os"

	plog "github.com/prometheus/common/log"
)

// DefaultLogger is the Logger used when a component is constructed
// without an explicit one, backed by github.com/prometheus/common/log.
type DefaultLogger struct {
	base  plog.Logger
	debug bool
}

// NewDefaultLogger creates a Logger writing to stderr with debug output
// suppressed by default.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		base:  plog.NewLogger(os.Stderr),
		debug: false,
	}
}

// ToggleDebug turns debug-level logging on or off and returns the new
// value.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	return l.debug
}

func (l *DefaultLogger) Info(v ...interface{}) { l.base.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{}) { l.base.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{}) { l.base.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{}) { l.base.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{}) { l.base.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) { l.base.Errorf(format, v...) }
func (l *DefaultLogger) Fatal(v ...interface{}) { l.base.Fatal(v...) }
func (l *DefaultLogger) Fatalf(format string, v ...interface{}) { l.base.Fatalf(format, v...) }

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.base.Debug(v...)
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.base.Debugf(format, v...)
	}
}
