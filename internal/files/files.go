// Package files holds small filesystem helpers.
package files

import (
	"os"

	"github.com/pkg/errors"
)

// DefaultDirCreationPerm is used when creating directories for cached files.
const DefaultDirCreationPerm = 0755

// Exists returns true if the file or directory exists.
func Exists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

// ReplaceAtomic writes a file by calling write on filePath+suffix and then renaming it to
// filePath. The temporary file is removed on failure.
func ReplaceAtomic(filePath, suffix string, write func(f *os.File) error) (err error) {
	tmpPath := filePath + suffix
	f, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "creating temporary file %q", tmpPath)
	}
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = f.Close()
		}
		_ = os.Remove(tmpPath)
	}()

	if err = write(f); err != nil {
		return err
	}
	closed = true
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close temporary file %q", tmpPath)
	}
	if err = os.Rename(tmpPath, filePath); err != nil {
		return errors.Wrapf(err, "failed to move %q to %q", tmpPath, filePath)
	}
	return nil
}
