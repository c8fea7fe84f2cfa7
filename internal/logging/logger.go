// Package logging defines the Logger interface used throughout this
// module: a small leveled-logging contract that every component takes
// at construction time instead of reaching for a global logger.
package logging

// Logger is implemented by anything that can record leveled messages.
// Peer, PeerMatrix and OrderedList all accept one; components never
// log through a package-global instance.
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
}
