package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the process-wide logrus logger. Unknown levels fall back
// to info.
func Setup(level, format string) {
	SetupTo(os.Stderr, level, format)
}

func SetupTo(w io.Writer, level, format string) {
	logrus.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// For returns an entry tagged with a component name, e.g. For("scheduler").
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
