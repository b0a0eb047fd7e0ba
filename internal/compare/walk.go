package compare

import (
	"context"
	"iter"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/thoreinstein/backupkern/internal/errors"
)

// Walk returns the depth-first classification sequence for opts.Source.
// Directories are yielded before their children. The sequence is not
// stateful: ranging over it again restarts the walk. It stops early when ctx
// is cancelled.
func Walk(ctx context.Context, opts Options) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		w := &walker{
			ctx:  ctx,
			opts: opts,
		}
		if w.opts.Fs == nil {
			w.opts.Fs = afero.NewOsFs()
		}
		w.walkDir("", yield)
	}
}

type walker struct {
	ctx  context.Context
	opts Options
}

func (w *walker) walkDir(rel string, yield func(Entry) bool) bool {
	dir := filepath.Join(w.opts.Source, rel)
	infos, err := afero.ReadDir(w.opts.Fs, dir)
	if err != nil {
		return yield(Entry{
			RelPath: displayPath(rel),
			Kind:    KindDir,
			Err:     errors.Wrapf(err, "reading directory %s", dir),
		})
	}

	for _, info := range infos {
		if w.ctx.Err() != nil {
			return false
		}

		childRel := filepath.Join(rel, info.Name())
		if w.ignored(filepath.Join(w.opts.Source, childRel)) {
			ignored := Entry{RelPath: childRel, Kind: KindOf(info.Mode()), Verdict: Ignored, Info: info}
			if !yield(ignored) {
				return false
			}
			continue
		}

		e := w.classify(childRel, info)
		if !yield(e) {
			return false
		}
		if e.Kind == KindDir && e.Err == nil {
			if !w.walkDir(childRel, yield) {
				return false
			}
		}
	}
	return true
}

func (w *walker) ignored(path string) bool {
	return w.opts.Matcher != nil && w.opts.Matcher.IsIgnored(path)
}

func (w *walker) classify(rel string, info os.FileInfo) Entry {
	e := Entry{
		RelPath: rel,
		Kind:    KindOf(info.Mode()),
		Verdict: New,
		Info:    info,
	}
	if e.Kind == KindOther {
		e.Err = errors.Wrapf(ErrUnsupportedType, "%s (%s)", rel, info.Mode().Type())
		return e
	}
	if w.opts.Previous == "" {
		return e
	}

	prev, err := Lstat(w.opts.Fs, filepath.Join(w.opts.Previous, rel))
	if err != nil {
		// Absent or unreadable in the previous snapshot: copy fresh.
		return e
	}
	e.Prev = prev

	switch {
	case KindOf(prev.Mode()) != e.Kind:
		e.Verdict = Changed
	case e.Kind == KindDir:
		e.Verdict = Unchanged
	case w.same(info, prev):
		e.Verdict = Unchanged
	default:
		e.Verdict = Changed
	}
	return e
}

func (w *walker) same(cur, prev os.FileInfo) bool {
	if cur.Size() != prev.Size() || !cur.ModTime().Equal(prev.ModTime()) {
		return false
	}
	if w.opts.CompareMode && cur.Mode().Perm() != prev.Mode().Perm() {
		return false
	}
	return true
}

// Lstat stats name without following a final symlink when fs supports it.
func Lstat(fs afero.Fs, name string) (os.FileInfo, error) {
	if l, ok := fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(name)
		return info, err
	}
	return fs.Stat(name)
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}
