// Package logging provides the process-wide structured logger the engine,
// plugin bus, and confirmed-commit manager log through. It follows the
// teacher's cmd/hiveexplorer/logger package verbatim: a package-level
// *slog.Logger that discards output until Init is called.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// L is the global logger instance. It discards all output until Init
// attaches a real handler.
var L *slog.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures Init.
type Options struct {
	Enabled bool       // If false, all logging is discarded.
	Path    string     // Log file path. Empty means stderr.
	Level   slog.Level // Minimum log level. Default: LevelInfo.
	JSON    bool       // Use a JSON handler instead of text.
}

// Init configures the global logger. Call from main() before any log
// calls that matter; safe to call more than once (e.g. after re-reading
// configuration).
func Init(opts Options) error {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	var out io.Writer = os.Stderr
	if opts.Path != "" {
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		out = f
	}

	level := opts.Level
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(out, handlerOpts))
	} else {
		L = slog.New(slog.NewTextHandler(out, handlerOpts))
	}
	return nil
}
