package sink

import (
	"io"
	"os"
)

// FS is the slice of filesystem behavior the sink needs. Tests swap
// in failing implementations to exercise the containment policy
// without touching a real disk.
type FS interface {
	Create(name string) (File, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	RemoveAll(path string) error
}

// File is the open handle contract for the calibration log.
type File interface {
	io.Writer
	Sync() error
	Close() error
}

// OSFS is the production FS backed by the os package.
type OSFS struct{}

// Create truncates or creates the named file.
func (OSFS) Create(name string) (File, error) {
	return os.Create(name)
}

// WriteFile writes data to the named file, creating it if necessary.
func (OSFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// MkdirAll creates a directory path.
func (OSFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// RemoveAll removes a path and everything under it.
func (OSFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
