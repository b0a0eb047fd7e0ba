package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/backupkern/internal/errors"
	"github.com/thoreinstein/backupkern/internal/logging"
	"github.com/thoreinstein/backupkern/internal/snapshot"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// clock returns a clock that advances one second per call.
func clock() func() time.Time {
	now := t0
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{WithLogger(logging.ForTest(t)), WithClock(clock())}
	return New(append(base, opts...)...)
}

func writeFile(t *testing.T, path, data string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func sameFile(t *testing.T, a, b string) bool {
	t.Helper()
	ai, err := os.Stat(a)
	require.NoError(t, err)
	bi, err := os.Stat(b)
	require.NoError(t, err)
	return os.SameFile(ai, bi)
}

// tree lists all paths under root, relative and sorted.
func tree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.Walk(root, func(path string, _ os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != root {
			rel, _ := filepath.Rel(root, path)
			out = append(out, rel)
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

type fixture struct {
	src  string
	dest string
	cfg  Config
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src")
	dest := filepath.Join(t.TempDir(), "backup")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(dest, 0o755))
	return fixture{
		src:  src,
		dest: dest,
		cfg:  Config{Source: src, Destinations: []string{dest}, Prefix: "test"},
	}
}

func TestRun_FirstBackupCopiesEverything(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a.txt"), "alpha", t0)
	writeFile(t, filepath.Join(f.src, "dir", "b.txt"), "beta", t0)
	require.NoError(t, os.MkdirAll(filepath.Join(f.src, "empty"), 0o755))

	res, err := newEngine(t).Run(context.Background(), f.cfg)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dest, res.Name), res.Path)
	assert.Empty(t, res.Previous)
	assert.Equal(t, 2, res.Dirs)
	assert.Equal(t, 2, res.Copied)
	assert.Equal(t, 0, res.Linked)
	assert.Equal(t, int64(len("alpha")+len("beta")), res.BytesCopied)
	assert.Empty(t, res.Errors)

	assert.Equal(t, []string{"a.txt", "dir", "dir/b.txt", "empty"}, tree(t, res.Path))
	assert.Equal(t, "alpha", readFile(t, filepath.Join(res.Path, "a.txt")))

	info, err := os.Stat(filepath.Join(res.Path, "a.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(t0), "mtime should be preserved")

	summary, err := snapshot.NewStore(afero.NewOsFs(), f.dest).ReadSummary(res.Name)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Copied)

	entries, err := os.ReadDir(f.dest)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), snapshot.InProgressPrefix)
	}
}

func TestRun_UnchangedFilesAreHardLinked(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a.txt"), "alpha", t0)
	writeFile(t, filepath.Join(f.src, "dir", "b.txt"), "beta", t0)
	eng := newEngine(t)

	first, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)

	assert.NotEqual(t, first.Name, second.Name)
	assert.Equal(t, first.Name, second.Previous)
	assert.Equal(t, 2, second.Linked)
	assert.Equal(t, 0, second.Copied)
	assert.True(t, sameFile(t, filepath.Join(first.Path, "a.txt"), filepath.Join(second.Path, "a.txt")))
	assert.True(t, sameFile(t, filepath.Join(first.Path, "dir", "b.txt"), filepath.Join(second.Path, "dir", "b.txt")))
}

func TestRun_ChangedFileIsCopied(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		mtime time.Time
	}{
		{"mtime changed", "alpha", t0.Add(time.Minute)},
		{"size changed", "alpha, longer", t0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			path := filepath.Join(f.src, "a.txt")
			writeFile(t, path, "alpha", t0)
			eng := newEngine(t)

			first, err := eng.Run(context.Background(), f.cfg)
			require.NoError(t, err)

			writeFile(t, path, tt.data, tt.mtime)
			second, err := eng.Run(context.Background(), f.cfg)
			require.NoError(t, err)

			assert.Equal(t, 1, second.Copied)
			assert.Equal(t, 0, second.Linked)
			assert.False(t, sameFile(t, filepath.Join(first.Path, "a.txt"), filepath.Join(second.Path, "a.txt")))
			assert.Equal(t, tt.data, readFile(t, filepath.Join(second.Path, "a.txt")))
			assert.Equal(t, "alpha", readFile(t, filepath.Join(first.Path, "a.txt")))
		})
	}
}

// A file is copied, then linked while unchanged, then copied again once
// modified; older snapshots keep the old content.
func TestRun_ThreeRuns(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.src, "a.txt")
	writeFile(t, path, "v1", t0)
	eng := newEngine(t)

	s1, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, s1.Copied)

	s2, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, s2.Linked)
	assert.True(t, sameFile(t, filepath.Join(s1.Path, "a.txt"), filepath.Join(s2.Path, "a.txt")))

	writeFile(t, path, "v2", t0.Add(time.Hour))
	s3, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, s3.Copied)
	assert.Equal(t, s2.Name, s3.Previous)

	assert.Equal(t, "v1", readFile(t, filepath.Join(s1.Path, "a.txt")))
	assert.Equal(t, "v1", readFile(t, filepath.Join(s2.Path, "a.txt")))
	assert.Equal(t, "v2", readFile(t, filepath.Join(s3.Path, "a.txt")))
	assert.False(t, sameFile(t, filepath.Join(s2.Path, "a.txt"), filepath.Join(s3.Path, "a.txt")))
}

func TestRun_IgnoredPathsAreAbsent(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "public", "readme"), "hi", t0)
	writeFile(t, filepath.Join(f.src, "secrets", "key"), "s3cr3t", t0)
	writeFile(t, filepath.Join(f.src, "secrets", "deep", "more"), "s3cr3t", t0)
	writeFile(t, filepath.Join(f.src, "scratch.tmp"), "tmp", t0)
	f.cfg.Ignore = []string{"/secrets", "*.tmp"}

	res, err := newEngine(t).Run(context.Background(), f.cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"public", "public/readme"}, tree(t, res.Path))
	assert.Equal(t, 2, res.Ignored)
}

func TestRun_DeletedFilesAreAbsent(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "keep"), "k", t0)
	writeFile(t, filepath.Join(f.src, "gone"), "g", t0)
	eng := newEngine(t)

	_, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.src, "gone")))

	res, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, tree(t, res.Path))
	assert.Empty(t, res.Errors)
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a"), "a", t0)
	writeFile(t, filepath.Join(f.src, "x", "y", "z"), "z", t0)
	eng := newEngine(t)

	_, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	third, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)

	assert.Equal(t, tree(t, second.Path), tree(t, third.Path))
	assert.Equal(t, 2, third.Linked)
	assert.Equal(t, 0, third.Copied)
}

func TestRun_LinkFailoverOnMemMapFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, p := range []string{"/src/a", "/src/d/b"} {
		require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fs, p, []byte(p), 0o644))
		require.NoError(t, fs.Chtimes(p, t0, t0))
	}
	require.NoError(t, fs.MkdirAll("/backup", 0o755))
	eng := newEngine(t, WithFs(fs))
	cfg := Config{Source: "/src", Destinations: []string{"/backup"}}

	first, err := eng.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Copied)

	second, err := eng.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Linked)
	assert.Equal(t, 2, second.Failovers)
	assert.Equal(t, 2, second.Copied)
	assert.Empty(t, second.Errors)

	data, err := afero.ReadFile(fs, filepath.Join(second.Path, "d", "b"))
	require.NoError(t, err)
	assert.Equal(t, "/src/d/b", string(data))

	// Copies carry the source mtime, so the next run still sees them unchanged.
	third, err := eng.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Failovers)
}

type failingLinker struct{ calls int }

func (l *failingLinker) Link(_, _ string) error {
	l.calls++
	return errors.New("EXDEV")
}

func TestRun_CustomLinkerFailover(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a"), "a", t0)
	linker := &failingLinker{}
	eng := newEngine(t, WithLinker(linker))

	_, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	res, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, linker.calls)
	assert.Equal(t, 1, res.Failovers)
	assert.Equal(t, 1, res.Copied)
}

type mockCopier struct {
	mock.Mock
}

func (m *mockCopier) Apply(src, dst string) error {
	args := m.Called(src, dst)
	return args.Error(0)
}

func TestRun_AttributeFailureIsPerEntry(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "bad"), "b", t0)
	writeFile(t, filepath.Join(f.src, "good"), "g", t0)

	copier := &mockCopier{}
	copier.On("Apply", filepath.Join(f.src, "bad"), mock.Anything).Return(errors.New("boom"))
	copier.On("Apply", mock.Anything, mock.Anything).Return(nil)

	res, err := newEngine(t, WithAttributeCopier(copier)).Run(context.Background(), f.cfg)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "bad", res.Errors[0].Path)
	assert.Equal(t, "attr", res.Errors[0].Op)
	assert.Equal(t, 2, res.Copied)
	// Entries are written below the in-progress directory before Commit.
	inProgress := filepath.Join(f.dest, snapshot.InProgressPrefix+res.Name)
	copier.AssertCalled(t, "Apply", filepath.Join(f.src, "good"), filepath.Join(inProgress, "good"))
	assert.NoDirExists(t, inProgress)
	copier.AssertCalled(t, "Apply", f.src, mock.Anything)
}

func TestRun_DirectoryAttributesAppliedDeepestFirst(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a", "b", "c"), "c", t0)

	var order []string
	copier := &mockCopier{}
	copier.On("Apply", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, args.String(0))
	}).Return(nil)

	_, err := newEngine(t, WithAttributeCopier(copier)).Run(context.Background(), f.cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(f.src, "a", "b", "c"),
		filepath.Join(f.src, "a", "b"),
		filepath.Join(f.src, "a"),
		f.src,
	}, order)
}

func TestRun_FatalErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"missing source", Config{Source: filepath.Join(dir, "nope"), Destinations: []string{dir}}, errors.ErrSourceMissing},
		{"source is a file", Config{Source: file, Destinations: []string{dir}}, errors.ErrSourceMissing},
		{"empty source", Config{Destinations: []string{dir}}, errors.ErrInvalidConfig},
		{"no destination", Config{Source: src}, errors.ErrInvalidConfig},
		{"destination is source", Config{Source: src, Destinations: []string{src}}, errors.ErrInvalidConfig},
		{"invalid glob", Config{Source: src, Destinations: []string{dir}, Ignore: []string{"[abc"}}, errors.ErrInvalidConfig},
		{"negative timeout", Config{Source: src, Destinations: []string{dir}, EntryTimeout: -time.Second}, errors.ErrInvalidConfig},
		{"destination is a file", Config{Source: src, Destinations: []string{file}}, errors.ErrDestinationUnwritable},
		{"no destination mounted", Config{Source: src, Destinations: []string{filepath.Join(dir, "unmounted")}}, errors.ErrDestinationUnwritable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newEngine(t).Run(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Nil(t, res)
		})
	}
}

func TestRun_DestinationFallback(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a"), "a", t0)
	missing := filepath.Join(t.TempDir(), "media", "usb", "backup")
	existing := t.TempDir()

	f.cfg.Destinations = []string{missing, existing}
	res, err := newEngine(t).Run(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.Equal(t, existing, res.Base)
	assert.NoDirExists(t, missing)

	other := filepath.Join(t.TempDir(), "mnt", "backup")
	f.cfg.Destinations = []string{missing, other}
	res, err = newEngine(t).Run(context.Background(), f.cfg)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, errors.ErrDestinationUnwritable))
	assert.NoDirExists(t, missing)
	assert.NoDirExists(t, other)
}

func TestRun_DestinationInsideSourceIsIgnored(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a"), "a", t0)
	f.cfg.Destinations = []string{filepath.Join(f.src, "backups")}
	require.NoError(t, os.MkdirAll(f.cfg.Destinations[0], 0o755))
	eng := newEngine(t)

	_, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	res, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, tree(t, res.Path))
	assert.Equal(t, 1, res.Ignored)
}

func TestRun_PrefixSeparatesBackupSets(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a"), "a", t0)
	eng := newEngine(t)

	f.cfg.Prefix = "zzz"
	_, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)

	f.cfg.Prefix = "aaa"
	res, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Previous)
	assert.Equal(t, 1, res.Copied)
}

func TestRun_ForeignDirectoriesInBaseAreNotSnapshots(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a"), "a", t0)
	f.cfg.Prefix = ""
	eng := newEngine(t)

	first, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dest, "lost+found"), 0o700))

	second, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Previous)
	assert.Equal(t, 1, second.Linked)
	assert.Equal(t, 0, second.Copied)
}

func TestRun_CancelledLeavesInProgress(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a"), "a", t0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newEngine(t).Run(ctx, f.cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Contains(t, filepath.Base(res.Path), snapshot.InProgressPrefix)
	assert.DirExists(t, res.Path)

	_, ok, err := snapshot.Latest(afero.NewOsFs(), f.dest)
	require.NoError(t, err)
	assert.False(t, ok, "interrupted run must not become the latest snapshot")
}

func TestPlan_DoesNotTouchDestination(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a"), "a", t0)
	writeFile(t, filepath.Join(f.src, "d", "b"), "b", t0)
	writeFile(t, filepath.Join(f.src, "x.tmp"), "x", t0)
	f.cfg.Ignore = []string{"*.tmp"}

	seq, err := newEngine(t).Plan(context.Background(), f.cfg)
	require.NoError(t, err)

	var got []string
	for a := range seq {
		got = append(got, a.String())
	}
	assert.Equal(t, []string{"copy  a", "mkdir d", "copy  d/b", "skip  x.tmp"}, got)
	entries, err := os.ReadDir(f.dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPlan_LinksAgainstLatest(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.src, "a"), "a", t0)
	eng := newEngine(t)
	prev, err := eng.Run(context.Background(), f.cfg)
	require.NoError(t, err)

	seq, err := eng.Plan(context.Background(), f.cfg)
	require.NoError(t, err)

	var actions []Action
	for a := range seq {
		actions = append(actions, a)
	}
	require.Len(t, actions, 1)
	assert.Equal(t, HardLink, actions[0].Kind)
	assert.Equal(t, filepath.Join(prev.Path, "a"), actions[0].Previous)
}

func TestPlan_FatalError(t *testing.T) {
	_, err := newEngine(t).Plan(context.Background(), Config{Source: "/definitely/missing", Destinations: []string{"/tmp"}})
	assert.True(t, errors.Is(err, errors.ErrSourceMissing))
}

func TestDestination(t *testing.T) {
	existing := t.TempDir()
	missing := filepath.Join(t.TempDir(), "missing")
	eng := newEngine(t)

	got, err := eng.Destination([]string{missing, existing})
	require.NoError(t, err)
	assert.Equal(t, existing, got)

	_, err = eng.Destination([]string{missing})
	assert.True(t, errors.Is(err, errors.ErrDestinationUnwritable))

	_, err = eng.Destination(nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}
