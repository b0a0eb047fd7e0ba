package fileutil

import (
	"io"

	"github.com/spf13/afero"

	"github.com/thoreinstein/backupkern/internal/errors"
)

// MetadataLimit caps reads of the small files backupkern keeps next to
// snapshots and in its config directory.
const MetadataLimit int64 = 1 << 20

// ErrFileTooLarge is returned, wrapped with the path, when a file is
// longer than the caller's limit.
var ErrFileTooLarge = errors.New("file too large")

// ReadFileWithLimit reads path, refusing files longer than limit bytes.
func ReadFileWithLimit(fs afero.Fs, path string, limit int64) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > limit {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s is %d bytes, limit %d", path, info.Size(), limit)
	}

	// Stat can be stale or absent, so the read is bounded too.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s exceeds %d bytes", path, limit)
	}
	return data, nil
}
