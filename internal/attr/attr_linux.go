//go:build linux

package attr

import (
	"golang.org/x/sys/unix"

	"github.com/thoreinstein/backupkern/internal/errors"
)

// Native returns the attribute copier for the local filesystem.
func Native() Copier {
	return unixCopier{}
}

// unixCopier works on paths directly so that symlinks get their own
// timestamps instead of their targets'.
type unixCopier struct{}

func (unixCopier) Apply(src, dst string) error {
	var st unix.Stat_t
	if err := unix.Lstat(src, &st); err != nil {
		return errors.Wrapf(err, "lstat %s", src)
	}

	// Ownership needs privilege; an unprivileged run keeps its own uid/gid.
	// Chown clears setuid bits, so it has to come before chmod.
	_ = unix.Lchown(dst, int(st.Uid), int(st.Gid))

	if st.Mode&unix.S_IFMT != unix.S_IFLNK {
		if err := unix.Chmod(dst, st.Mode&0o7777); err != nil {
			return errors.Wrapf(err, "chmod %s", dst)
		}
	}

	times := []unix.Timespec{
		{Nsec: unix.UTIME_OMIT},
		st.Mtim,
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, dst, times, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return errors.Wrapf(err, "utimensat %s", dst)
	}
	return nil
}
