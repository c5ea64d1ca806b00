package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Options controls Setup.
type Options struct {
	Verbose bool
	// Writer receives human-readable logs; defaults to stderr.
	Writer io.Writer
	// FilePath, when set, additionally receives JSON logs at debug level.
	FilePath string
}

// Setup installs the default slog logger and returns it with a close func for
// the optional log file. stdout is never used so it stays free for script
// output and MCP JSON-RPC.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	closer := func() error { return nil }

	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = fanout{handler, fileHandler}
		closer = f.Close
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l, closer, nil
}
