package cl

import (
	"github.com/sirupsen/logrus"
	"io"
	"sync/atomic"
)

var loggerPtr atomic.Pointer[logrus.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

func newNopLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// SetLogger sets the logger used by clkit and its sub-packages. By default
// nothing is logged; pass nil to restore that.
//
// Levels in use:
//   - Debug: object creation, arguments that cannot be marshalled
//   - Warn: release calls reporting a failure
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
func Logger() *logrus.Logger {
	return loggerPtr.Load()
}
