// Package compare classifies a source tree against the previous snapshot.
//
// [Walk] visits the source depth-first, in name order, and yields one
// [Entry] per path with a [Verdict]: New, Unchanged, Changed or Ignored.
// A regular file or symlink is Unchanged when the previous snapshot holds
// an entry of the same kind with the same size and modification time.
// File contents are never read.
//
// The walk is read-only and lazy: nothing is touched until the caller
// ranges over the sequence, and breaking out of the loop stops it.
//
//	for e := range compare.Walk(ctx, compare.Options{Fs: fs, Source: src, Previous: prev}) {
//	    fmt.Println(e.RelPath, e.Verdict)
//	}
package compare
