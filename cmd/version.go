// Package cmd holds build metadata for the backupkern binary.
package cmd

import "runtime/debug"

// Set at link time:
//
//	-ldflags "-X github.com/thoreinstein/backupkern/cmd.Version=v1.2.0"
//
// Values left at their defaults are filled from the module build info, so
// binaries built with `go install ...@version` still report a version.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func init() {
	fillFromBuildInfo(debug.ReadBuildInfo)
}

func fillFromBuildInfo(read func() (*debug.BuildInfo, bool)) {
	bi, ok := read()
	if !ok {
		return
	}
	if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "none" {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = s.Value
			}
		}
	}
}
