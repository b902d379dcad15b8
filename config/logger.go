package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger from the log section. Format is
// "text" or "json"; output goes to stderr so reports can be piped.
func NewLogger(c Log) (*logrus.Logger, error) {
	return newLogger(c, os.Stderr)
}

func newLogger(c Log, out io.Writer) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(out)

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, &ConfigurationError{Field: "log.level", Reason: err.Error()}
	}
	l.SetLevel(level)

	switch c.Format {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, &ConfigurationError{Field: "log.format", Reason: fmt.Sprintf("must be text or json, got %q", c.Format)}
	}
	return l, nil
}
