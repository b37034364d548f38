// Package obslog wires github.com/sirupsen/logrus as the core's
// structured logger, the way zhukovaskychina-xmysql-server's logger
// package wraps a single shared logger instance with field-based
// helpers instead of scattering format strings through the codebase.
package obslog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	log  *logrus.Logger
)

// Logger returns the process-wide structured logger, created lazily
// on first use with text output to stderr and info level.
func Logger() *logrus.Logger {
	once.Do(func() {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.InfoLevel)
	})
	return log
}

// SetLevel adjusts the shared logger's verbosity; callers embedding
// this core in a larger binary call this once at startup.
func SetLevel(level logrus.Level) {
	Logger().SetLevel(level)
}

// Fields is a re-export so callers don't need a direct logrus import
// just to build a field map.
type Fields = logrus.Fields
