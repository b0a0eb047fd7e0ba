// Package logging provides structured logging for the backupkern CLI using slog.
//
// A backup run logs its phases at info and debug, and one record per entry
// decision (skip, mkdir, link, copy) at [LevelTrace]. Failed entries are
// logged at warn.
//
// # Basic Usage
//
//	logger := logging.New(logging.Options{
//		Level:  logging.LevelFromVerbosity(2),
//		Output: os.Stderr,
//		File:   logFile, // optional JSON copy
//	})
//	ctx = logging.NewContext(ctx, logger)
//
// Text output to a terminal is colored unless NO_COLOR is set or TERM is
// "dumb".
//
// # Testing
//
// [ForTest] routes log output, trace records included, through t.Log:
//
//	eng := engine.New(engine.WithLogger(logging.ForTest(t)))
package logging
