// Package logging builds the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing JSON lines outside of dev and human readable
// text in dev.  Every entry carries the service name.
func New(env, level, service string) *logrus.Entry {
	return NewWithOutput(os.Stdout, env, level, service)
}

// NewWithOutput is New with an explicit writer, used by tests.
func NewWithOutput(w io.Writer, env, level, service string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(w)
	if env == "dev" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l.WithField("service", service)
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
