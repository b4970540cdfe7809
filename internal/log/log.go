// Package log provides the collector's process-wide logger: a leveled
// stderr stream for the operator plus an optional always-debug JSONL
// file for postmortem diagnosis, fanned out through a single slog.Logger.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

var logger *slog.Logger
var fileWriter *FileWriter

// Options configures the logger. A zero Options logs warnings and
// errors to stderr only.
type Options struct {
	// Verbose raises the stderr threshold to debug; otherwise stderr
	// carries only warnings and errors.
	Verbose bool
	// DebugDir, if set, enables an always-debug JSON log file for this
	// run under that directory.
	DebugDir string
	// RetentionDays prunes run log files older than this from DebugDir
	// before opening the new one (0 disables pruning).
	RetentionDays int
	// Stderr overrides the stderr destination; tests use this to
	// capture output instead of os.Stderr.
	Stderr io.Writer
}

// Init installs the global logger per opts. Call once at process
// startup, before any goroutine logs.
func Init(opts Options) error {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	stderrLevel := slog.LevelWarn
	if opts.Verbose {
		stderrLevel = slog.LevelDebug
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: stderrLevel}),
	}

	if opts.DebugDir != "" {
		if opts.RetentionDays > 0 {
			Cleanup(opts.DebugDir, opts.RetentionDays)
		}

		fw, err := NewFileWriter(opts.DebugDir)
		if err != nil {
			return err
		}
		fileWriter = fw
		handlers = append(handlers, slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	logger = slog.New(&multiHandler{handlers: handlers})
	slog.SetDefault(logger)
	return nil
}

// Close closes the debug log file, if one is open.
func Close() {
	if fileWriter != nil {
		fileWriter.Close()
		fileWriter = nil
	}
}

// multiHandler fans a record out to every wrapped handler, independently
// of each handler's own level — slog.Handler has no native multi-sink
// composition.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// Debug logs at debug level on the global logger.
func Debug(msg string, args ...any) { logger.Debug(msg, args...) }

// Info logs at info level on the global logger.
func Info(msg string, args ...any) { logger.Info(msg, args...) }

// Warn logs at warn level on the global logger.
func Warn(msg string, args ...any) { logger.Warn(msg, args...) }

// Error logs at error level on the global logger.
func Error(msg string, args ...any) { logger.Error(msg, args...) }

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger { return logger.With(args...) }

// SetOutput points the global logger at w as a plain text sink, for
// tests that need to assert on log output without calling Init.
func SetOutput(w io.Writer) {
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

func init() {
	logger = slog.Default()
}
