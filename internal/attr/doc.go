// Package attr copies file attributes from a source entry to its copy in a
// snapshot.
//
// A [Copier] applies permission bits and modification time. The portable
// [FsCopier] works on any afero filesystem; [Native] returns the best
// implementation for the running platform, which on Linux also sets symlink
// timestamps and, when privileged, ownership.
package attr
