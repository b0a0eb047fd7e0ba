//go:build !linux

package attr

import "github.com/spf13/afero"

// Native returns the attribute copier for the local filesystem.
func Native() Copier {
	return FsCopier{Fs: afero.NewOsFs()}
}
