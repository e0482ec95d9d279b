// Package log builds the structured logger this module's packages
// take as an injected collaborator. The debug mask switches logging on
// or off as a whole; it does not filter by category. Each record
// carries a "category" field (e.g. "tab", "locks"), and Enabled tests a
// category bit against a mask for callers that want that check.
package log

import (
	"io"
	"os"

	"github.com/jesseduffield/libmnt/pkg/config"
	"github.com/sirupsen/logrus"
)

// New returns a logger entry tagged with cfg.DebugMask. With an empty
// mask the level is set to errors only and output goes to io.Discard,
// so nothing is written. With any non-zero mask it writes JSON to
// stderr at the level named by LOG_LEVEL (Debug when unset or
// invalid), for every category alike.
func New(cfg *config.Config) *logrus.Entry {
	logger := logrus.New()
	logger.Formatter = &logrus.JSONFormatter{}

	if cfg.DebugMask == 0 {
		logger.Out = io.Discard
		logger.SetLevel(logrus.ErrorLevel)
	} else {
		logger.SetLevel(getLogLevel())
		logger.Out = os.Stderr
	}

	return logger.WithField("debugMask", cfg.DebugMask)
}

func getLogLevel() logrus.Level {
	strLevel := os.Getenv("LOG_LEVEL")
	level, err := logrus.ParseLevel(strLevel)
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

// Enabled reports whether category is active in mask. The packages'
// debugf helpers do not call it: they log whenever a logger is
// attached.
func Enabled(mask, category config.Bit) bool {
	return mask&category != 0
}
