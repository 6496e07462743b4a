//go:build !windows

package gattcache

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// defaultFileStore implements FileStore against the real filesystem,
// taking an advisory flock(2) around save and load so a concurrent
// writer (e.g. another process sharing the same cache directory) cannot
// interleave with a read (§5 "Shared resources").
type defaultFileStore struct{}

// NewDefaultFileStore returns the real-filesystem FileStore used when no
// WithFileStore option is supplied.
func NewDefaultFileStore() FileStore { return defaultFileStore{} }

func (defaultFileStore) ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err == nil {
		defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}
	return io.ReadAll(f)
}

func (defaultFileStore) WriteFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err == nil {
		defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

func (defaultFileStore) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
