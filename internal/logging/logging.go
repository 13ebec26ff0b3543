// Package logging builds the per-run operational log.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LevelTrace is below debug and used for traversal pruning.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel parses trace, debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// FileName returns the log file name for a run started at now.
func FileName(now time.Time) string {
	return "symtrace_" + now.UTC().Format("20060102T150405Z") + ".log"
}

// New returns a text logger writing to w. Every record carries run_id.
func New(w io.Writer, level slog.Level, runID string) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	})
	return slog.New(h).With(slog.String("run_id", runID))
}

// Open creates the log file in dir and returns a logger writing to it, a
// function closing the file and the file's path.
func Open(dir string, level slog.Level, now time.Time) (*slog.Logger, func() error, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, "", fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(dir, FileName(now))
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, "", fmt.Errorf("creating log file: %w", err)
	}
	logger := New(f, level, uuid.NewString())
	return logger, f.Close, path, nil
}
