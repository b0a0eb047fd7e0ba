// Package paths provides path resolution helpers for backupkern.
//
// It expands ~ in user-supplied paths (configuration files, source and
// destination directories, ignore rules), locates the configuration file,
// and offers a separator-aware prefix test used by ignore matching.
//
// # XDG Base Directory Compliance
//
// The package wraps github.com/adrg/xdg for cross-platform XDG Base Directory
// Specification compliance. Besides ~/backupkern.yaml, the configuration is
// looked up in <ConfigHome>/backupkern/config.yaml:
//
//	paths.ConfigCandidates()
//	// [/home/x/backupkern.yaml /home/x/.config/backupkern/config.yaml]
package paths
