package attr

import (
	"io/fs"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/thoreinstein/backupkern/internal/errors"
)

// Copier applies the attributes of src to dst.
type Copier interface {
	Apply(src, dst string) error
}

// modeBits are the mode bits carried over to a copy.
const modeBits = fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky

// FsCopier applies permission bits and modification time through an
// afero.Fs. Symlinks are left untouched because afero has no lchmod or
// lutimes.
type FsCopier struct {
	Fs afero.Fs
}

// Apply implements Copier.
func (c FsCopier) Apply(src, dst string) error {
	info, err := lstat(c.Fs, src)
	if err != nil {
		return errors.Wrapf(err, "lstat %s", src)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil
	}

	if err := c.Fs.Chmod(dst, info.Mode()&modeBits); err != nil {
		return errors.Wrapf(err, "chmod %s", dst)
	}
	// A zero atime leaves the access time unchanged.
	if err := c.Fs.Chtimes(dst, time.Time{}, info.ModTime()); err != nil {
		return errors.Wrapf(err, "chtimes %s", dst)
	}
	return nil
}

func lstat(fsys afero.Fs, name string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(name)
		return info, err
	}
	return fsys.Stat(name)
}
