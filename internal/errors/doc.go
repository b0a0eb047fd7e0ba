// Package errors provides error handling conventions for the backupkern CLI.
//
// The package re-exports the wrapping helpers of
// [github.com/cockroachdb/errors] so call sites import a single errors
// package, defines sentinel errors for the fatal failure classes of a backup
// run, and provides an ExitError type mapping those classes onto exit codes.
//
// # Sentinel Errors
//
// Sentinel errors allow callers to check for specific error conditions
// using [Is]:
//
//	if errors.Is(err, errors.ErrSourceMissing) {
//	    // the source directory is gone
//	}
//
// # Exit Codes
//
//   - ExitSuccess (0): the run completed, possibly with per-entry errors
//   - ExitUser (1): configuration or invalid input
//   - ExitSystem (2): source missing, destination unwritable, other I/O
//
// # ExitError
//
// [ExitError] wraps an underlying error with an exit code and optional
// suggestion. [Classify] derives one from any error returned by a run:
//
//	if exitErr := errors.Classify(err); exitErr != nil {
//	    if exitErr.Suggestion != "" {
//	        fmt.Println("Suggestion:", exitErr.Suggestion)
//	    }
//	    os.Exit(exitErr.Code)
//	}
package errors
