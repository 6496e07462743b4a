//go:build windows

package gattcache

import (
	"errors"
	"os"
)

// defaultFileStore implements FileStore against the real filesystem.
// The advisory flock(2) locking used on the Unix build has no portable
// equivalent here, so concurrent access across processes is the host's
// responsibility, same as it already is for every other file the host
// stack manages (§5 "Shared resources").
type defaultFileStore struct{}

// NewDefaultFileStore returns the real-filesystem FileStore used when no
// WithFileStore option is supplied.
func NewDefaultFileStore() FileStore { return defaultFileStore{} }

func (defaultFileStore) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (defaultFileStore) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0600)
}

func (defaultFileStore) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
