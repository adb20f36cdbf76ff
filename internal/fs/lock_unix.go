//go:build !windows

package fs

import (
	"errors"
	"os"
	"syscall"
)

// isLockErrno reports busy-file errors that permission checks miss.
func isLockErrno(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY)
}

// replace performs an atomic rename on POSIX systems.
func replace(tmpPath, dest string) error {
	return os.Rename(tmpPath, dest)
}

// syncDir best-effort fsyncs the parent directory to persist the rename.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
