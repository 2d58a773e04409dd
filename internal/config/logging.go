package config

import (
	"io"

	"github.com/sirupsen/logrus"
)

func parseLevel(level string) (logrus.Level, error) {
	return logrus.ParseLevel(level)
}

// NewLogger builds a logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	if lvl, err := parseLevel(l.Level); err == nil {
		logger.SetLevel(lvl)
	}
	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
