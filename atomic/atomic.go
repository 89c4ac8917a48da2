// Package atomic replaces files so that readers never observe a partial write.
package atomic

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteFile writes data to a temporary file next to path and renames it
// over path. On failure the temporary file is removed and any existing
// file at path is left untouched.
func WriteFile(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	name := tmp.Name()

	cleanup := func() {
		_ = fs.Remove(name)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := fs.Chmod(name, perm); err != nil {
		cleanup()
		return fmt.Errorf("setting mode on %s: %w", name, err)
	}
	if err := fs.Rename(name, path); err != nil {
		cleanup()
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
