// Package logging provides the debug log, stage summary tables and run reports.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// DefaultLogFile is the debug log written to the working directory
const DefaultLogFile = "voiceprep-debug.log"

// NewLogger creates a logger that writes text entries to path at the given level.
// The terminal belongs to the progress display, so nothing is written to stderr.
// An empty path discards all entries. The returned close function must be called
// once logging is finished.
func NewLogger(path, level string) (*logrus.Logger, func() error, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	log := logrus.New()
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if path == "" {
		log.SetOutput(io.Discard)
		return log, func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log file: %w", err)
	}
	log.SetOutput(f)
	return log, f.Close, nil
}
