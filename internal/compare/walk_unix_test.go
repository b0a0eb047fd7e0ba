//go:build unix

package compare

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestWalk_NamedPipeIsReportedNotOpened(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, unix.Mkfifo(filepath.Join(src, "pipe"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "z.txt"), []byte("z"), 0o644))

	done := make(chan []Entry, 1)
	go func() {
		var out []Entry
		for e := range Walk(context.Background(), Options{Fs: afero.NewOsFs(), Source: src}) {
			out = append(out, e)
		}
		done <- out
	}()

	var entries []Entry
	select {
	case entries = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("walk blocked on a named pipe")
	}

	require.Len(t, entries, 2)
	assert.Equal(t, "pipe", entries[0].RelPath)
	assert.Equal(t, KindOther, entries[0].Kind)
	assert.True(t, errors.Is(entries[0].Err, ErrUnsupportedType))
	assert.NoError(t, entries[1].Err)
}

func TestWalk_SymlinkNotFollowed(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "real"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "real", "f"), []byte("f"), 0o644))
	require.NoError(t, os.Symlink("real", filepath.Join(src, "link")))

	var got []Entry
	for e := range Walk(context.Background(), Options{Fs: afero.NewOsFs(), Source: src}) {
		got = append(got, e)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "link", got[0].RelPath)
	assert.Equal(t, KindSymlink, got[0].Kind)
	assert.Equal(t, "real", got[1].RelPath)
	assert.Equal(t, filepath.Join("real", "f"), got[2].RelPath)
}

func TestWalk_UnreadableDirectoryContinues(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	src := t.TempDir()
	locked := filepath.Join(src, "locked")
	require.NoError(t, os.MkdirAll(locked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "next.txt"), []byte("n"), 0o644))
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var got []Entry
	for e := range Walk(context.Background(), Options{Fs: afero.NewOsFs(), Source: src}) {
		got = append(got, e)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "locked", got[0].RelPath)
	assert.NoError(t, got[0].Err)
	assert.Equal(t, "locked", got[1].RelPath)
	assert.Error(t, got[1].Err)
	assert.Equal(t, "next.txt", got[2].RelPath)
}
