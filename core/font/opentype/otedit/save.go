package otedit

import (
	"os"
	"path/filepath"

	"github.com/npillmayer/otfeat/core"
)

// SaveFont writes font data to path. The data goes to a temporary file in
// the target directory first and is then moved into place, so an interrupted
// write never leaves a truncated font behind.
func SaveFont(data []byte, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".otfeat-*")
	if err != nil {
		return core.WrapError(err, core.EWRITE, "cannot create file in %s", dir)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return core.WrapError(err, core.EWRITE, "cannot write font to %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return core.WrapError(err, core.EWRITE, "cannot write font to %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return core.WrapError(err, core.EWRITE, "cannot set permissions on %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return core.WrapError(err, core.EWRITE, "cannot move font into place at %s", path)
	}
	return nil
}
