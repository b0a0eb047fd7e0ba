// Package snapshot locates, names, lists and prunes the snapshots stored
// under a destination base directory.
//
// Each completed backup is a plain directory whose name is its creation
// identifier, so lexicographic order is creation order:
//
//	/mnt/backup/
//	├── .backupkern/
//	│   ├── home_2026-01-23_10-07-12.json
//	│   └── home_2026-01-24_10-07-09.json
//	├── home_2026-01-23_10-07-12/
//	└── home_2026-01-24_10-07-09/
//
// A run writes into .inprogress-<name> and renames it when it completes.
// Hidden entries are never considered snapshots, so an interrupted run is
// never picked by [Latest] as the next run's link source.
//
// # Retention
//
// [Store.Prune] removes the oldest snapshots beyond a keep count. Files
// shared through hard links with the remaining snapshots stay intact.
package snapshot
