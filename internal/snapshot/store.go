package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/thoreinstein/backupkern/internal/errors"
	"github.com/thoreinstein/backupkern/pkg/fileutil"
)

// Store manages the snapshots under one destination base directory.
type Store struct {
	fs     afero.Fs
	base   string
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix restricts the store to snapshots named <prefix>_<timestamp>.
// Several backup sets can then share one destination base without linking
// against each other.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewStore creates a Store rooted at base.
func NewStore(fs afero.Fs, base string, opts ...Option) *Store {
	s := &Store{
		fs:   fs,
		base: filepath.Clean(base),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Base returns the destination base directory.
func (s *Store) Base() string {
	return s.base
}

// Path returns the directory of the snapshot with the given name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.base, name)
}

// InProgressPath returns the directory a run writes to before it completes.
func (s *Store) InProgressPath(name string) string {
	return filepath.Join(s.base, InProgressPrefix+name)
}

// Latest returns the most recent completed snapshot. ok is false when the
// base does not exist or holds no snapshot yet.
func (s *Store) Latest() (snap Snapshot, ok bool, err error) {
	names, err := s.names()
	if err != nil {
		return Snapshot{}, false, err
	}
	if len(names) == 0 {
		return Snapshot{}, false, nil
	}
	// names is sorted ascending; the greatest name wins.
	name := names[len(names)-1]
	return Snapshot{Name: name, Path: s.Path(name)}, true, nil
}

// List returns all completed snapshots, newest first, with their summaries.
// Returns ErrNoSnapshotsFound when there are none.
func (s *Store) List() ([]Snapshot, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoSnapshotsFound
	}

	snaps := make([]Snapshot, 0, len(names))
	for _, name := range slices.Backward(names) {
		snap := Snapshot{Name: name, Path: s.Path(name)}
		if summary, err := s.ReadSummary(name); err == nil {
			snap.Summary = summary
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// NewName returns a snapshot name for a run started at now, using the
// store's prefix and avoiding names already present under the base.
func (s *Store) NewName(now time.Time) string {
	return NewName(s.prefix, now, s.taken)
}

func (s *Store) taken(name string) bool {
	for _, p := range []string{s.Path(name), s.InProgressPath(name)} {
		if _, err := s.fs.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// Begin creates the in-progress directory for name, creating the base
// directory first if needed, and returns its path.
func (s *Store) Begin(name string) (string, error) {
	if err := s.fs.MkdirAll(s.base, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating destination %s", s.base)
	}
	dir := s.InProgressPath(name)
	if err := s.fs.Mkdir(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating snapshot directory %s", dir)
	}
	return dir, nil
}

// Commit renames the in-progress directory for name to its final name,
// making it visible to Latest.
func (s *Store) Commit(name string) (string, error) {
	final := s.Path(name)
	if err := s.fs.Rename(s.InProgressPath(name), final); err != nil {
		return "", errors.Wrapf(err, "finalizing snapshot %s", name)
	}
	return final, nil
}

// WriteSummary records the run summary for a snapshot.
func (s *Store) WriteSummary(summary *Summary) error {
	if summary == nil || summary.Name == "" {
		return errors.New("summary name is required")
	}
	dir := filepath.Join(s.base, MetaDir)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating metadata directory")
	}
	summary.Version = SummaryVersion
	if summary.BackupkernVersion == "" {
		summary.BackupkernVersion = Version
	}
	return fileutil.AtomicWriteJSON(s.fs, s.summaryPath(summary.Name), summary)
}

// ReadSummary loads the run summary for a snapshot.
func (s *Store) ReadSummary(name string) (*Summary, error) {
	data, err := fileutil.ReadFileWithLimit(s.fs, s.summaryPath(name), fileutil.MetadataLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "reading summary for %s", name)
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, errors.Wrapf(err, "parsing summary for %s", name)
	}
	return &summary, nil
}

// Prune removes completed snapshots beyond the newest keep, together with
// their summaries, and returns the removed snapshots. Files shared with the
// kept snapshots through hard links stay intact.
func (s *Store) Prune(keep int) ([]Snapshot, error) {
	if keep < 0 {
		return nil, errors.New("keep must be non-negative")
	}

	snaps, err := s.List()
	if err != nil {
		if errors.Is(err, ErrNoSnapshotsFound) {
			return nil, nil
		}
		return nil, err
	}

	var removed []Snapshot
	for i := keep; i < len(snaps); i++ {
		if err := s.fs.RemoveAll(snaps[i].Path); err != nil {
			return removed, errors.Wrapf(err, "removing snapshot %s", snaps[i].Name)
		}
		_ = s.fs.Remove(s.summaryPath(snaps[i].Name))
		removed = append(removed, snaps[i])
	}
	return removed, nil
}

func (s *Store) summaryPath(name string) string {
	return filepath.Join(s.base, MetaDir, name+".json")
}

// names returns the completed snapshot names in ascending order.
func (s *Store) names() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading destination %s", s.base)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !IsName(s.prefix, name) {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// IsName reports whether name is a snapshot name for prefix: the prefix and
// an underscore (when prefix is set), a timestamp in TimeLayout and an
// optional numeric collision suffix. Anything else under a base, such as
// lost+found, is not a snapshot.
func IsName(prefix, name string) bool {
	if prefix != "" {
		var ok bool
		if name, ok = strings.CutPrefix(name, prefix+"_"); !ok {
			return false
		}
	}
	if len(name) < len(TimeLayout) {
		return false
	}
	if _, err := time.Parse(TimeLayout, name[:len(TimeLayout)]); err != nil {
		return false
	}
	suffix := name[len(TimeLayout):]
	if suffix == "" {
		return true
	}
	digits, ok := strings.CutPrefix(suffix, "-")
	if !ok || digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// NewName formats the snapshot name for prefix and now. The name sorts after
// every earlier name of the same prefix; when exists reports it as taken, a
// zero-padded -NNN suffix is appended so suffixed names keep sorting in
// creation order.
func NewName(prefix string, now time.Time, exists func(string) bool) string {
	name := now.Format(TimeLayout)
	if prefix != "" {
		name = prefix + "_" + name
	}
	if exists == nil {
		return name
	}

	candidate := name
	for i := 1; exists(candidate); i++ {
		candidate = fmt.Sprintf("%s-%03d", name, i)
	}
	return candidate
}

// Latest returns the most recent completed snapshot under base.
func Latest(fs afero.Fs, base string) (Snapshot, bool, error) {
	return NewStore(fs, base).Latest()
}

// List returns all completed snapshots under base, newest first.
func List(fs afero.Fs, base string) ([]Snapshot, error) {
	return NewStore(fs, base).List()
}

// Prune removes completed snapshots under base beyond the newest keep.
func Prune(fs afero.Fs, base string, keep int) ([]Snapshot, error) {
	return NewStore(fs, base).Prune(keep)
}
