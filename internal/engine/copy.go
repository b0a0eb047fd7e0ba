package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/thoreinstein/backupkern/internal/errors"
)

// copyFile copies src to dst through a uniquely named temp file in dst's
// directory. A positive timeout bounds the whole copy.
func (e *Engine) copyFile(ctx context.Context, src, dst string, timeout time.Duration) (int64, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	in, err := e.fs.Open(src)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	tmp := tempPath(dst)
	out, err := e.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, errors.Wrapf(err, "create tmp %s", tmp)
	}
	defer func() {
		_ = e.fs.Remove(tmp) // no-op if rename succeeded
	}()

	n, err := io.Copy(out, &ctxReader{ctx: ctx, r: in})
	if err != nil {
		out.Close()
		return n, errors.Wrapf(err, "copy data %s", src)
	}
	if err := out.Close(); err != nil {
		return n, errors.Wrapf(err, "close tmp %s", tmp)
	}
	if err := e.fs.Rename(tmp, dst); err != nil {
		return n, errors.Wrapf(err, "rename %s -> %s", tmp, dst)
	}
	return n, nil
}

// copySymlink re-creates the symlink src at dst with the same target.
func (e *Engine) copySymlink(src, dst string) error {
	reader, ok := e.fs.(afero.LinkReader)
	if !ok {
		return errors.Newf("symlinks not supported by %s", e.fs.Name())
	}
	linker, ok := e.fs.(afero.Linker)
	if !ok {
		return errors.Newf("symlinks not supported by %s", e.fs.Name())
	}

	target, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return errors.Wrapf(err, "readlink %s", src)
	}
	if err := linker.SymlinkIfPossible(target, dst); err != nil {
		return errors.Wrapf(err, "symlink %s -> %s", dst, target)
	}
	return nil
}

func tempPath(dst string) string {
	name := fmt.Sprintf(".%s.%s.tmp", filepath.Base(dst), uuid.New().String()[:8])
	return filepath.Join(filepath.Dir(dst), name)
}

// ctxReader stops reading once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
