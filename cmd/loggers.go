package cmd

import (
	"io"

	"github.com/sirupsen/logrus"
)

// newLogger builds the diagnostic logger for one invocation. Each -v raises
// the level one step: info, then debug, then trace.
func newLogger(w io.Writer, verbosity int) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	switch {
	case verbosity >= 2:
		logger.SetLevel(logrus.TraceLevel)
	case verbosity == 1:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
