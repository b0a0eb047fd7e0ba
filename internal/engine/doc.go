// Package engine runs incremental backups.
//
// A run creates a new snapshot under the destination base and fills it
// from the source tree. Files unchanged since the previous snapshot are
// hard-linked to it; everything else is copied. The snapshot is written
// under a hidden in-progress name and renamed once complete, so an
// interrupted run never becomes the link source for the next one.
//
//	eng := engine.New(engine.WithLogger(logger))
//	res, err := eng.Run(ctx, engine.Config{
//	    Source:       "/home/x",
//	    Destinations: []string{"/mnt/backup"},
//	    Ignore:       []string{"~/.cache", "*.tmp"},
//	})
//
// Fatal errors wrap [errors.ErrInvalidConfig], [errors.ErrSourceMissing] or
// [errors.ErrDestinationUnwritable]. Failures on a single entry are
// collected in [Result.Errors] and never stop the run.
package engine
