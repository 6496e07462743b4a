package gattcache

import "github.com/sirupsen/logrus"

// NewLogger returns a standalone logrus logger at the given level, text
// formatted, suitable for passing to WithLogger when the caller does not
// already have one threaded through their own application.
func NewLogger(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(level)
	return log
}
