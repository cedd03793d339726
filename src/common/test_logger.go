package common

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestLogLevel is the level used by test loggers unless a test asks otherwise.
const TestLogLevel = logrus.DebugLevel

// testLoggerAdapter routes log lines to t.Log so output only shows up for
// failing or verbose tests.
type testLoggerAdapter struct {
	t      testing.TB
	prefix string
}

func (a *testLoggerAdapter) Write(d []byte) (int, error) {
	line := strings.TrimSuffix(string(d), "\n")
	if a.prefix != "" {
		line = a.prefix + ": " + line
	}
	a.t.Log(line)
	return len(d), nil
}

// NewTestLogger returns a logger writing to t.Log.
func NewTestLogger(t testing.TB, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.Out = &testLoggerAdapter{t: t}
	logger.Level = level
	return logger
}

// NewTestEntry returns a logger entry with a test prefix, which is the shape
// every component constructor expects.
func NewTestEntry(t testing.TB, level logrus.Level) *logrus.Entry {
	return NewTestLogger(t, level).WithField("prefix", t.Name())
}
