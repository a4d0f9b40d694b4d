package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type logrusLogger struct {
	entry *logrus.Entry
}

func newLogrusLogger(cfg *Config) *logrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&patternFormatter{pattern: cfg.Pattern, time: cfg.Time})
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		l.SetLevel(level)
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func build(cfg *Config) (*logrusLogger, error) {
	cfg = cfg.withDefaults()

	if _, err := logrus.ParseLevel(cfg.Level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	l := newLogrusLogger(cfg)
	if cfg.File != nil && cfg.File.Filename != "" {
		w := NewMultiWriter().Add(os.Stderr).AddFileAppender(*cfg.File)
		l.entry.Logger.SetOutput(w)
	}
	return l, nil
}

func (l *logrusLogger) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusLogger) Tracef(f string, args ...interface{})      { l.entry.Tracef(f, args...) }
func (l *logrusLogger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusLogger) Debugf(f string, args ...interface{})      { l.entry.Debugf(f, args...) }
func (l *logrusLogger) Info(args ...interface{})                  { l.entry.Info(args...) }
func (l *logrusLogger) Infof(f string, args ...interface{})       { l.entry.Infof(f, args...) }
func (l *logrusLogger) Warn(args ...interface{})                  { l.entry.Warn(args...) }
func (l *logrusLogger) Warnf(f string, args ...interface{})       { l.entry.Warnf(f, args...) }
func (l *logrusLogger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusLogger) Errorf(f string, args ...interface{})      { l.entry.Errorf(f, args...) }
func (l *logrusLogger) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusLogger) Fatalf(f string, args ...interface{})      { l.entry.Fatalf(f, args...) }

func (l *logrusLogger) WithField(field string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(field, value)}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{entry: l.entry.WithError(err)}
}

func (l *logrusLogger) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}

// patternFormatter renders entries through a %-token pattern:
// %time, %level, %msg, %fields, %n.
type patternFormatter struct {
	pattern string
	time    string
}

func (f *patternFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	out := f.pattern
	out = strings.Replace(out, "%time", entry.Time.Format(f.time), 1)
	out = strings.Replace(out, "%level", strings.ToUpper(entry.Level.String()), 1)
	out = strings.Replace(out, "%msg", entry.Message, 1)
	out = strings.Replace(out, "%fields", formatFields(entry.Data), 1)
	out = strings.Replace(out, "%n", "\n", 1)
	return []byte(out), nil
}

func formatFields(data logrus.Fields) string {
	if len(data) == 0 {
		return ""
	}
	parts := make([]string, 0, len(data))
	for k, v := range data {
		parts = append(parts, fmt.Sprintf("%s=%+v", k, v))
	}
	return " " + strings.Join(parts, " ")
}
