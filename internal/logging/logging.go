// Package logging configures the application logger. The TUI owns the
// terminal while running, so log output goes to a file under the app's
// data directory rather than stderr.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

const logFileName = "llm-terminal.log"

// Setup opens the log file in dir and returns the logger plus a closer
// for the underlying file. A file open failure degrades to a discard
// logger instead of failing startup.
func Setup(dir string, debug bool) (*log.Logger, func() error) {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	if env := os.Getenv("LLM_TERMINAL_LOG_LEVEL"); env != "" {
		if parsed, err := log.ParseLevel(env); err == nil {
			level = parsed
		}
	}

	var w io.Writer = io.Discard
	closer := func() error { return nil }
	if err := os.MkdirAll(dir, 0755); err == nil {
		f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err == nil {
			w = f
			closer = f.Close
		}
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	return logger, closer
}
