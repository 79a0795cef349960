// Package logging builds the logrus loggers used across the arbiter.
package logging

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// DefaultLevel is the level used when none is configured.
const DefaultLevel = "info"

// New returns a formatted logrus Entry writing to out, with prefix set to "arbiter".
func New(level string, out io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.Out = out
	logger.Level = Level(level)
	logger.Formatter = new(prefixed.TextFormatter)
	return logger.WithField("prefix", "arbiter")
}

// Level parses a level name. Unknown names fall back to info.
func Level(l string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// Discard returns an Entry that drops everything.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.Out = io.Discard
	return logrus.NewEntry(logger)
}

// testLoggerAdapter maps log lines into calls to testing.TB.Log, so that
// logging only shows up for failed tests.
type testLoggerAdapter struct {
	t testing.TB
}

func (a *testLoggerAdapter) Write(d []byte) (int, error) {
	n := len(d)
	if n > 0 && d[n-1] == '\n' {
		d = d[:n-1]
	}
	a.t.Log(string(d))
	return n, nil
}

// NewTestLogger returns a debug-level Entry that writes through t.Log.
func NewTestLogger(t testing.TB) *logrus.Entry {
	logger := logrus.New()
	logger.Out = &testLoggerAdapter{t: t}
	logger.Level = logrus.DebugLevel
	return logger.WithField("test", t.Name())
}
