package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// newLogger writes to out, as text on a terminal and JSON otherwise. When logDir is set
// every record is also appended to a per-day file in it. The returned func closes that file.
func newLogger(out io.Writer, verbose bool, logDir string, now time.Time) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	closeFn := func() error { return nil }
	w := out
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(logFilePath(logDir, now), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(out, f)
		closeFn = f.Close
	}

	if f, ok := out.(*os.File); ok && isTerminal(f) {
		return slog.New(slog.NewTextHandler(w, opts)), closeFn, nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), closeFn, nil
}

func logFilePath(dir string, now time.Time) string {
	return filepath.Join(dir, "ferry-watch-"+now.Format("20060102")+".log")
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
