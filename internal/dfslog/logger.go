// Package dfslog initializes the structured logger used across every
// component of the optimizer pipeline. Modeled on shared/pkg/logger in the
// teacher codebase, trimmed to this library's ambient contexts (slate runs,
// optimizer invocations) instead of HTTP/service contexts.
package dfslog

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var root *logrus.Logger

// Init configures the package-level logger. logLevel falls back to
// LOG_LEVEL, then "debug" when isDevelopment is true or "info" otherwise. Pass isDevelopment=true for human-readable text
// output; otherwise JSON is used (suitable for log aggregation).
func Init(logLevel string, isDevelopment bool) *logrus.Logger {
	log := logrus.New()

	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", logLevel).Warn("invalid LOG_LEVEL, using info")
	}

	if !isDevelopment {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	log.SetOutput(os.Stdout)
	root = log
	return log
}

// Root returns the package-level logger, initializing a default if Init was
// never called.
func Root() *logrus.Logger {
	if root == nil {
		return Init("", false)
	}
	return root
}

// WithRunContext tags log lines with the slate fingerprint and component
// name for a single pipeline invocation.
func WithRunContext(slateFingerprint, component string) *logrus.Entry {
	return Root().WithFields(logrus.Fields{
		"slate_fingerprint": slateFingerprint,
		"component":         component,
	})
}

// WithSeed additionally tags the RNG seed, useful for reproducing a run.
func WithSeed(entry *logrus.Entry, seed int64) *logrus.Entry {
	return entry.WithField("seed", seed)
}
