package engine

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/thoreinstein/backupkern/internal/attr"
	"github.com/thoreinstein/backupkern/internal/compare"
	"github.com/thoreinstein/backupkern/internal/errors"
	"github.com/thoreinstein/backupkern/internal/ignore"
	"github.com/thoreinstein/backupkern/internal/logging"
	"github.com/thoreinstein/backupkern/internal/paths"
	"github.com/thoreinstein/backupkern/internal/snapshot"
)

// Phase is a stage of a backup run.
type Phase string

const (
	PhaseStart      Phase = "start"
	PhaseWalking    Phase = "walking"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
)

// Config describes one backup run.
type Config struct {
	// Source is the directory to back up.
	Source string

	// Destinations are candidate base directories. The first one that
	// exists is used; when none exists the run fails.
	Destinations []string

	// Prefix is prepended to snapshot names.
	Prefix string

	// Ignore holds ignore rules, see package ignore.
	Ignore []string

	// CompareMode treats differing permission bits as a change.
	CompareMode bool

	// EntryTimeout bounds the copy of a single entry. Zero disables it.
	EntryTimeout time.Duration
}

// Engine executes backup runs.
type Engine struct {
	fs     afero.Fs
	linker Linker
	attrs  attr.Copier
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(e *Engine) {
		e.fs = fs
	}
}

// WithLinker sets how hard links are created.
func WithLinker(l Linker) Option {
	return func(e *Engine) {
		e.linker = l
	}
}

// WithAttributeCopier sets the collaborator that copies permissions and
// modification times.
func WithAttributeCopier(c attr.Copier) Option {
	return func(e *Engine) {
		e.attrs = c
	}
}

// WithLogger sets the logger. Defaults to the logger carried by the run's
// context.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the clock used to name snapshots.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine. Without options it works on the local filesystem.
func New(opts ...Option) *Engine {
	e := &Engine{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	_, onOS := e.fs.(*afero.OsFs)
	if e.fs == nil {
		e.fs = afero.NewOsFs()
		onOS = true
	}
	if e.linker == nil {
		if onOS {
			e.linker = OSLinker{}
		} else {
			e.linker = unsupportedLinker{}
		}
	}
	if e.attrs == nil {
		if onOS {
			e.attrs = attr.Native()
		} else {
			e.attrs = attr.FsCopier{Fs: e.fs}
		}
	}
	return e
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logging.FromContext(ctx)
}

// prepared holds everything resolved before the destination is touched.
type prepared struct {
	source   string
	base     string
	store    *snapshot.Store
	matcher  *ignore.Matcher
	previous *snapshot.Snapshot
}

func (e *Engine) prepare(cfg Config) (*prepared, error) {
	if cfg.Source == "" {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "source is required")
	}
	if len(cfg.Destinations) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "at least one destination is required")
	}
	if cfg.EntryTimeout < 0 {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "entry timeout must not be negative")
	}

	source, err := paths.Resolve(cfg.Source)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "source: %v", err)
	}
	info, err := e.fs.Stat(source)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSourceMissing, "%s: %v", source, err)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(errors.ErrSourceMissing, "%s is not a directory", source)
	}

	base, err := e.chooseDestination(cfg.Destinations)
	if err != nil {
		return nil, err
	}
	if base == source {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "destination %s is the source", base)
	}

	rules := cfg.Ignore
	if paths.HasPrefix(base, source) {
		// Never back up our own snapshots.
		rules = append(append([]string(nil), rules...), base)
	}
	matcher, err := ignore.New(source, rules)
	if err != nil {
		return nil, err
	}

	store := snapshot.NewStore(e.fs, base, snapshot.WithPrefix(cfg.Prefix))
	prev, ok, err := store.Latest()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDestinationUnwritable, "%v", err)
	}

	p := &prepared{
		source:  source,
		base:    base,
		store:   store,
		matcher: matcher,
	}
	if ok {
		p.previous = &prev
	}
	return p, nil
}

// Destination returns the base directory a run with the given
// destinations would write to.
func (e *Engine) Destination(dests []string) (string, error) {
	if len(dests) == 0 {
		return "", errors.Wrap(errors.ErrInvalidConfig, "at least one destination is required")
	}
	return e.chooseDestination(dests)
}

// chooseDestination returns the first destination that exists as a
// directory. Destinations are never created: a missing one usually means
// the drive is not mounted.
func (e *Engine) chooseDestination(dests []string) (string, error) {
	resolved := make([]string, 0, len(dests))
	for _, d := range dests {
		abs, err := paths.Resolve(d)
		if err != nil {
			return "", errors.Wrapf(errors.ErrInvalidConfig, "destination: %v", err)
		}
		resolved = append(resolved, abs)
	}
	for _, d := range resolved {
		if ok, _ := afero.DirExists(e.fs, d); ok {
			return d, nil
		}
	}
	return "", errors.Wrapf(errors.ErrDestinationUnwritable,
		"no destination exists: %s", strings.Join(resolved, ", "))
}

func (p *prepared) walkOptions(cfg Config) compare.Options {
	opts := compare.Options{
		Source:      p.source,
		Matcher:     p.matcher,
		CompareMode: cfg.CompareMode,
	}
	if p.previous != nil {
		opts.Previous = p.previous.Path
	}
	return opts
}

// Run performs one backup. The returned Result is non-nil whenever a
// snapshot directory was created, including when the run was interrupted.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	started := e.now()
	log := e.log(ctx)

	p, err := e.prepare(cfg)
	if err != nil {
		return nil, err
	}

	name := p.store.NewName(started)
	res := &Result{
		Name:      name,
		Source:    p.source,
		Base:      p.base,
		StartedAt: started,
	}
	if p.previous != nil {
		res.Previous = p.previous.Name
	}
	log.Info("starting backup",
		"phase", PhaseStart,
		"source", p.source,
		"destination", p.base,
		"snapshot", name,
		"previous", res.Previous,
	)

	dir, err := p.store.Begin(name)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDestinationUnwritable, "%v", err)
	}
	res.Path = dir

	log.Debug("phase", "phase", PhaseWalking)
	r := &run{
		engine:  e,
		log:     log,
		res:     res,
		timeout: cfg.EntryTimeout,
		roots: roots{
			source: p.source,
			target: dir,
		},
	}
	if p.previous != nil {
		r.roots.previous = p.previous.Path
	}

	opts := p.walkOptions(cfg)
	opts.Fs = e.fs
	for entry := range compare.Walk(ctx, opts) {
		r.execute(ctx, planAction(entry, r.roots))
	}
	if err := ctx.Err(); err != nil {
		res.Duration = e.now().Sub(started)
		log.Warn("backup interrupted", "snapshot", dir)
		return res, errors.Wrap(err, "backup interrupted")
	}

	log.Debug("phase", "phase", PhaseFinalizing)
	r.finalize()

	final, err := p.store.Commit(name)
	if err != nil {
		return res, errors.Wrapf(errors.ErrDestinationUnwritable, "%v", err)
	}
	res.Path = final
	res.Duration = e.now().Sub(started)

	if err := p.store.WriteSummary(res.Summary()); err != nil {
		log.Warn("failed to write run summary", "error", err)
	}

	log.Info("backup complete",
		"phase", PhaseDone,
		"snapshot", final,
		"dirs", res.Dirs,
		"linked", res.Linked,
		"copied", res.Copied,
		"ignored", res.Ignored,
		"errors", len(res.Errors),
		"duration", res.Duration,
	)
	return res, nil
}

// run is the mutable state of one Run.
type run struct {
	engine  *Engine
	log     *slog.Logger
	res     *Result
	roots   roots
	timeout time.Duration

	// dirs are created directories in pre-order; their attributes are
	// applied in reverse once all children exist.
	dirs []Action

	// failedDir is the relative path of a directory that could not be
	// created. Its descendants are skipped.
	failedDir string
}

func (r *run) execute(ctx context.Context, a Action) {
	if r.failedDir != "" {
		if paths.HasPrefix(a.RelPath, r.failedDir) {
			return
		}
		r.failedDir = ""
	}

	log := r.log
	if a.Err != nil {
		r.fail(a.RelPath, "walk", a.Err)
		return
	}

	switch a.Kind {
	case Skip:
		r.res.Ignored++
		log.Log(ctx, logging.LevelTrace, "skip", logging.PathKey, a.RelPath)

	case MakeDir:
		if err := r.engine.fs.Mkdir(a.Target, 0o755); err != nil && !os.IsExist(err) {
			r.fail(a.RelPath, "mkdir", err)
			r.failedDir = a.RelPath
			return
		}
		r.res.Dirs++
		r.dirs = append(r.dirs, a)
		log.Log(ctx, logging.LevelTrace, "mkdir", logging.PathKey, a.RelPath)

	case HardLink:
		err := r.engine.linker.Link(a.Previous, a.Target)
		if err == nil {
			r.res.Linked++
			log.Log(ctx, logging.LevelTrace, "link", logging.PathKey, a.RelPath)
			return
		}
		log.Debug("link failed, copying instead", logging.PathKey, a.RelPath, "error", err)
		r.res.Failovers++
		r.copy(ctx, a)

	case Copy:
		r.copy(ctx, a)
	}
}

func (r *run) copy(ctx context.Context, a Action) {
	var (
		n   int64
		err error
	)
	if a.EntryKind == compare.KindSymlink {
		err = r.engine.copySymlink(a.Source, a.Target)
	} else {
		n, err = r.engine.copyFile(ctx, a.Source, a.Target, r.timeout)
	}
	if err != nil {
		r.fail(a.RelPath, "copy", err)
		return
	}

	r.res.Copied++
	r.res.BytesCopied += n
	r.log.Log(ctx, logging.LevelTrace, "copy", logging.PathKey, a.RelPath, "bytes", n)

	if err := r.engine.attrs.Apply(a.Source, a.Target); err != nil {
		r.fail(a.RelPath, "attr", err)
	}
}

func (r *run) finalize() {
	for i := len(r.dirs) - 1; i >= 0; i-- {
		d := r.dirs[i]
		if err := r.engine.attrs.Apply(d.Source, d.Target); err != nil {
			r.fail(d.RelPath, "attr", err)
		}
	}
	if err := r.engine.attrs.Apply(r.roots.source, r.roots.target); err != nil {
		r.fail(".", "attr", err)
	}
}

func (r *run) fail(rel, op string, err error) {
	r.log.Warn("entry failed", logging.PathKey, rel, "op", op, "error", err)
	r.res.Errors = append(r.res.Errors, EntryError{Path: rel, Op: op, Err: err})
}
