package files

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CopyFile copies src to dst with the same permissions, replacing dst
// atomically. Missing parent directories of dst are created.
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open source file")
	}
	defer sourceFile.Close()
	stat, err := sourceFile.Stat()
	if err != nil {
		return errors.Wrap(err, "failed to stat source file")
	}
	if stat.IsDir() {
		return errors.Errorf("%s is a directory", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, "failed to create destination dir")
	}
	destFile, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create destination file")
	}
	defer os.Remove(destFile.Name())
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return errors.Wrap(err, "failed to copy data")
	}
	if err := destFile.Chmod(stat.Mode().Perm()); err != nil {
		return errors.Wrap(err, "failed to set permissions")
	}
	if err := destFile.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync destination file")
	}
	if err := destFile.Close(); err != nil {
		return errors.Wrap(err, "failed to close destination file")
	}
	return errors.Wrap(os.Rename(destFile.Name(), dst), "failed to move destination file")
}
