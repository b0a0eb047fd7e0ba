// Package fileutil writes and reads the small metadata files backupkern
// keeps beside snapshots (run summaries) and in its config directory.
//
// Writes go through a temp file in the target directory that is synced
// and renamed into place, so a destination drive unplugged mid-write
// leaves either the old file or the new one.
package fileutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/backupkern/internal/errors"
)

const tempPattern = ".backupkern-*.tmp"

// AtomicWriteFile replaces path with data. The parent directory must exist.
func AtomicWriteFile(fs afero.Fs, path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), tempPattern)
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	name := tmp.Name()
	defer func() {
		if err != nil {
			_ = fs.Remove(name)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "writing %s", name)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "syncing %s", name)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", name)
	}
	if err = fs.Chmod(name, perm); err != nil {
		return errors.Wrapf(err, "setting mode on %s", name)
	}
	if err = fs.Rename(name, path); err != nil {
		return errors.Wrapf(err, "renaming into %s", path)
	}
	return nil
}

// AtomicWriteJSON writes v as two-space indented JSON, newline terminated,
// with mode 0644.
func AtomicWriteJSON(fs afero.Fs, path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encoding JSON")
	}
	return AtomicWriteFile(fs, path, buf.Bytes(), 0o644)
}

// AtomicWriteYAML writes v as YAML with the given mode.
func AtomicWriteYAML(fs afero.Fs, path string, v any, perm os.FileMode) error {
	data, err := marshalYAML(v)
	if err != nil {
		return err
	}
	return AtomicWriteFile(fs, path, data, perm)
}

// marshalYAML turns yaml.v3's panics on unsupported types into errors.
func marshalYAML(v any) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("encoding YAML: %v", r)
		}
	}()
	data, err = yaml.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding YAML")
	}
	return data, nil
}
