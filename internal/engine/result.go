package engine

import (
	"encoding/json"
	"time"

	"github.com/thoreinstein/backupkern/internal/snapshot"
)

// Result is the outcome of a run.
type Result struct {
	// Name is the snapshot name; Path its directory.
	Name string `json:"name"`
	Path string `json:"path"`

	Source   string `json:"source"`
	Base     string `json:"destination"`
	Previous string `json:"previous,omitempty"`

	Dirs        int   `json:"dirs"`
	Linked      int   `json:"linked"`
	Copied      int   `json:"copied"`
	Ignored     int   `json:"ignored"`
	Failovers   int   `json:"link_failovers"`
	BytesCopied int64 `json:"bytes_copied"`

	Errors []EntryError `json:"errors,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// EntryError is a failure confined to one entry.
type EntryError struct {
	// Path is relative to the source root.
	Path string
	// Op is the step that failed: walk, mkdir, copy or attr.
	Op  string
	Err error
}

func (e EntryError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e EntryError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error as a string.
func (e EntryError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.record())
}

func (e EntryError) record() snapshot.EntryRecord {
	return snapshot.EntryRecord{Path: e.Path, Op: e.Op, Error: e.Err.Error()}
}

// Summary converts the result into the summary persisted next to the
// snapshot.
func (r *Result) Summary() *snapshot.Summary {
	s := &snapshot.Summary{
		Name:        r.Name,
		Source:      r.Source,
		Previous:    r.Previous,
		CreatedAt:   r.StartedAt,
		DurationMS:  r.Duration.Milliseconds(),
		Dirs:        r.Dirs,
		Linked:      r.Linked,
		Copied:      r.Copied,
		Ignored:     r.Ignored,
		Failovers:   r.Failovers,
		BytesCopied: r.BytesCopied,
	}
	for _, e := range r.Errors {
		s.Errors = append(s.Errors, e.record())
	}
	return s
}
