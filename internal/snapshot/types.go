package snapshot

import (
	"time"

	"github.com/thoreinstein/backupkern/internal/errors"
)

// SummaryVersion is the summary format version for forward compatibility.
const SummaryVersion = 1

// Layout constants for a destination base directory.
const (
	// MetaDir holds one run summary per snapshot, named <snapshot>.json.
	MetaDir = ".backupkern"

	// InProgressPrefix marks a snapshot directory whose run has not finished.
	InProgressPrefix = ".inprogress-"

	// TimeLayout is the timestamp part of a snapshot name. It sorts
	// lexicographically in creation order.
	TimeLayout = "2006-01-02_15-04-05"
)

// DefaultRetentionCount is the default number of snapshots kept by prune.
const DefaultRetentionCount = 10

// Version is set at build time via ldflags.
var Version = "dev"

// ErrNoSnapshotsFound indicates the destination base holds no completed snapshot.
var ErrNoSnapshotsFound = errors.New("no snapshots found")

// Snapshot is one completed backup under a destination base.
type Snapshot struct {
	// Name is the directory name, which is also the creation identifier.
	Name string `json:"name"`

	// Path is the absolute path of the snapshot directory.
	Path string `json:"path"`

	// Summary is the run summary, or nil when none was recorded.
	Summary *Summary `json:"summary,omitempty"`
}

// Summary describes the run that produced a snapshot.
// It is stored as <base>/.backupkern/<name>.json.
type Summary struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Source      string    `json:"source"`
	Previous    string    `json:"previous,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	DurationMS  int64     `json:"duration_ms"`
	Dirs        int       `json:"dirs"`
	Linked      int       `json:"linked"`
	Copied      int       `json:"copied"`
	Ignored     int       `json:"ignored"`
	Failovers   int       `json:"link_failovers"`
	BytesCopied int64     `json:"bytes_copied"`

	// Errors lists entries that could not be materialized.
	Errors []EntryRecord `json:"errors,omitempty"`

	// BackupkernVersion is the version of backupkern that created the snapshot.
	BackupkernVersion string `json:"backupkern_version"`
}

// EntryRecord is the persisted form of a per-entry error.
type EntryRecord struct {
	Path  string `json:"path"`
	Op    string `json:"op"`
	Error string `json:"error"`
}
