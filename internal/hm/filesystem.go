package hm

import (
	"io"
)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Inspect lstats a path and returns a Path object.
	// Symlinks are not followed and are reported through Path.IsSymlink.
	Inspect(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// FindFiles discovers regular files under root, recursively.
	// Any directory listed in exclude is not descended into.
	FindFiles(root *Path, exclude []string) ([]*Path, error)

	// IsIgnored reports whether a file matches the configured ignore patterns.
	// root is the directory the patterns are relative to.
	IsIgnored(path *Path, root string) bool

	// IsFile reports whether a regular file exists at absPath.
	IsFile(absPath string) (bool, error)

	// MkdirAll creates a directory and its parents. Existing directories are not an error.
	MkdirAll(dir string) error

	// Rename atomically moves src to dst.
	Rename(src, dst string) error
}
