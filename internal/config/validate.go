package config

import (
	"path/filepath"
	"strings"

	"github.com/thoreinstein/backupkern/internal/errors"
	"github.com/thoreinstein/backupkern/internal/ignore"
	"github.com/thoreinstein/backupkern/internal/paths"
)

// Validation errors for configuration fields.
var (
	// ErrRequired indicates a mandatory field is empty.
	ErrRequired = errors.New("required")

	// ErrInvalidPath indicates a path value is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNegativeTimeout indicates entry_timeout is below zero.
	ErrNegativeTimeout = errors.New("entry_timeout must not be negative")
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Source == "" {
		errs = append(errs, &PathError{Field: "source", Err: ErrRequired})
	} else if err := validatePath(cfg.Source); err != nil {
		errs = append(errs, &PathError{Field: "source", Path: cfg.Source, Err: err})
	}

	if len(cfg.Destination) == 0 {
		errs = append(errs, &PathError{Field: "destination", Err: ErrRequired})
	}
	for _, d := range cfg.Destination {
		if err := validatePath(d); err != nil {
			errs = append(errs, &PathError{Field: "destination", Path: d, Err: err})
		}
	}

	if strings.ContainsAny(cfg.Prefix, "/\x00") {
		errs = append(errs, &PathError{Field: "prefix", Path: cfg.Prefix, Err: ErrInvalidPath})
	}

	if cfg.EntryTimeout < 0 {
		errs = append(errs, ErrNegativeTimeout)
	}

	if _, err := ignore.New(paths.ExpandHome(cfg.Source), cfg.Ignore); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// validatePath checks if a path string is well-formed.
// It does not check if the path exists, only that it's syntactically valid.
func validatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}

	// Check for null bytes which are never valid in paths
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}

	cleaned := filepath.Clean(path)
	if cleaned == "" || cleaned == "." {
		return ErrInvalidPath
	}

	return nil
}

// PathError represents an error for a specific path field.
type PathError struct {
	Field string
	Path  string
	Err   error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Field + ": " + e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error() + ": " + e.Path
}

func (e *PathError) Unwrap() error {
	return e.Err
}
