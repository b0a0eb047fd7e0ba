package logging

import (
	"io"
	"log/slog"
	"os"
	"testing"
)

// Format specifies the output format for log messages.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// LevelTrace is below slog.LevelDebug and carries per-entry decisions.
const LevelTrace = slog.LevelDebug - 4

// DebugEnv, when set and no -v flag is given, raises the log level:
// "1" or "true" for debug, "2" for trace.
const DebugEnv = "BACKUPKERN_DEBUG"

// LevelFromVerbosity maps a -v count to a log level.
// 0 logs warnings and errors, 1 adds info, 2 adds debug, 3 or more adds trace.
func LevelFromVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelWarn
	case v == 1:
		return slog.LevelInfo
	case v == 2:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// VerbosityFromEnv returns v, or the verbosity requested through DebugEnv
// when v is zero.
func VerbosityFromEnv(v int) int {
	if v != 0 {
		return v
	}
	switch os.Getenv(DebugEnv) {
	case "1", "true":
		return 2
	case "2":
		return 3
	}
	return 0
}

// Options configures the logger of a backup run.
type Options struct {
	// Level is the minimum level written to Output.
	Level slog.Level

	// Format of Output. File is always JSON.
	Format Format

	// Output defaults to os.Stderr.
	Output io.Writer

	// File, when set, receives a JSON copy of the log. It records info and
	// above even when Output is quieter, so every run leaves its start and
	// completion in the file.
	File io.Writer
}

// New creates a logger writing to opts.Output and, when set, opts.File.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var h slog.Handler
	switch opts.Format {
	case FormatJSON:
		h = slog.NewJSONHandler(out, jsonOptions(opts.Level))
	default:
		h = NewHandler(out, &slog.HandlerOptions{Level: opts.Level})
	}

	if opts.File != nil {
		h = newTee(h, slog.NewJSONHandler(opts.File, jsonOptions(min(opts.Level, slog.LevelInfo))))
	}
	return slog.New(h)
}

// jsonOptions renders LevelTrace as "TRACE" rather than slog's "DEBUG-4".
func jsonOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if l, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(l))
				}
			}
			return a
		},
	}
}

// testWriter adapts testing.T to io.Writer.
type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}
	w.t.Log(msg)
	return len(p), nil
}

// ForTest creates a logger that writes to the test's log output at trace
// level, so per-entry decisions show up when a test fails.
func ForTest(t *testing.T) *slog.Logger {
	t.Helper()
	return New(Options{
		Level:  LevelTrace,
		Output: &testWriter{t: t},
	})
}
