package engine

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"

	"github.com/thoreinstein/backupkern/internal/compare"
)

// ActionKind is what the engine does for one entry.
type ActionKind int

const (
	// MakeDir creates a directory in the new snapshot.
	MakeDir ActionKind = iota
	// HardLink links the previous snapshot's file into the new one.
	HardLink
	// Copy copies the entry from the source.
	Copy
	// Skip does nothing; the entry is ignored or failed classification.
	Skip
)

func (k ActionKind) String() string {
	switch k {
	case MakeDir:
		return "mkdir"
	case HardLink:
		return "link"
	case Copy:
		return "copy"
	default:
		return "skip"
	}
}

// MarshalText renders the kind by name.
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Action is one planned step of a run.
type Action struct {
	Kind      ActionKind      `json:"kind"`
	RelPath   string          `json:"path"`
	EntryKind compare.Kind    `json:"-"`
	Verdict   compare.Verdict `json:"-"`
	Source    string          `json:"source"`
	Previous  string          `json:"previous,omitempty"`
	Target    string          `json:"target"`
	Err       error           `json:"-"`
}

func (a Action) String() string {
	if a.Err != nil {
		return fmt.Sprintf("%-5s %s (%v)", "error", a.RelPath, a.Err)
	}
	return fmt.Sprintf("%-5s %s", a.Kind, a.RelPath)
}

// roots are the three trees an action refers to.
type roots struct {
	source   string
	previous string
	target   string
}

// planAction turns a classification into the action that materializes it.
func planAction(e compare.Entry, r roots) Action {
	a := Action{
		Kind:      Skip,
		RelPath:   e.RelPath,
		EntryKind: e.Kind,
		Verdict:   e.Verdict,
		Source:    filepath.Join(r.source, e.RelPath),
		Target:    filepath.Join(r.target, e.RelPath),
		Err:       e.Err,
	}
	if e.Err != nil || e.Verdict == compare.Ignored {
		return a
	}

	switch e.Kind {
	case compare.KindDir:
		a.Kind = MakeDir
	case compare.KindRegular:
		if e.Verdict == compare.Unchanged && r.previous != "" {
			a.Kind = HardLink
			a.Previous = filepath.Join(r.previous, e.RelPath)
		} else {
			a.Kind = Copy
		}
	case compare.KindSymlink:
		a.Kind = Copy
	}
	return a
}

// Plan resolves cfg like Run but only returns the actions a run would
// perform. Nothing under the destination is created or modified. Targets
// point at the final snapshot name.
func (e *Engine) Plan(ctx context.Context, cfg Config) (iter.Seq[Action], error) {
	p, err := e.prepare(cfg)
	if err != nil {
		return nil, err
	}

	r := roots{
		source: p.source,
		target: p.store.Path(p.store.NewName(e.now())),
	}
	if p.previous != nil {
		r.previous = p.previous.Path
	}
	opts := p.walkOptions(cfg)
	opts.Fs = e.fs

	return func(yield func(Action) bool) {
		for entry := range compare.Walk(ctx, opts) {
			if !yield(planAction(entry, r)) {
				return
			}
		}
	}, nil
}
