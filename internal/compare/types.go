package compare

import (
	"io/fs"
	"os"

	"github.com/spf13/afero"

	"github.com/thoreinstein/backupkern/internal/errors"
)

// ErrUnsupportedType is carried by entries that are neither regular files,
// directories nor symlinks. Such entries are never opened.
var ErrUnsupportedType = errors.New("unsupported file type")

// Kind is the file type of an entry.
type Kind int

const (
	KindRegular Kind = iota
	KindDir
	KindSymlink
	KindOther
)

// KindOf maps a file mode onto a Kind.
func KindOf(mode fs.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return KindRegular
	case mode.IsDir():
		return KindDir
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	default:
		return KindOther
	}
}

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Verdict is the classification of a source entry.
type Verdict int

const (
	// New means the previous snapshot has no entry at this path.
	New Verdict = iota
	// Unchanged means the previous entry can be reused as-is.
	Unchanged
	// Changed means the previous entry differs in kind, size or mtime.
	Changed
	// Ignored means an ignore rule matched; descendants are not visited.
	Ignored
)

func (v Verdict) String() string {
	switch v {
	case New:
		return "new"
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Entry is one classified source path.
type Entry struct {
	// RelPath is the path relative to the source root.
	RelPath string
	Kind    Kind
	Verdict Verdict

	// Info is the Lstat result in the source tree.
	Info os.FileInfo

	// Prev is the Lstat result in the previous snapshot, nil when absent.
	Prev os.FileInfo

	// Err is set when the entry could not be classified or listed.
	// The walk continues with the entry's siblings.
	Err error
}

// Matcher decides whether a source path is excluded from the backup.
type Matcher interface {
	IsIgnored(path string) bool
}

// Options configures a walk.
type Options struct {
	Fs afero.Fs

	// Source is the absolute path of the tree to back up.
	Source string

	// Previous is the absolute path of the previous snapshot, empty when
	// there is none.
	Previous string

	Matcher Matcher

	// CompareMode additionally treats differing permission bits as a change.
	CompareMode bool
}
