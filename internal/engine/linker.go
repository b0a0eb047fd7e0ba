package engine

import (
	"os"

	"github.com/thoreinstein/backupkern/internal/errors"
)

// ErrLinkUnsupported is returned by linkers for filesystems without hard links.
var ErrLinkUnsupported = errors.New("hard links not supported")

// Linker creates hard links. A failing Link makes the engine copy the file
// instead.
type Linker interface {
	Link(oldname, newname string) error
}

// OSLinker links through the operating system.
type OSLinker struct{}

// Link implements Linker.
func (OSLinker) Link(oldname, newname string) error {
	return os.Link(oldname, newname)
}

type unsupportedLinker struct{}

func (unsupportedLinker) Link(oldname, newname string) error {
	return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: ErrLinkUnsupported}
}
