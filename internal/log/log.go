// Package log wraps logrus behind a small Logger interface so the rest
// of the code never imports the logging backend directly. Diagnostics
// go to stderr; the burst output stream is not logging and never passes
// through here.
package log

import "sync"

type Logger interface {
	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
}

var (
	mu     sync.Mutex
	logger Logger = newLogrusLogger(defaultConfig())
)

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Init replaces the process-wide logger according to cfg. Called once
// at startup, before any goroutines are running.
func Init(cfg *Config) error {
	l, err := build(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}
