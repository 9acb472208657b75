package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"hashmove/internal/hm"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the
// real filesystem. ignorePatterns are the configured glob patterns.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{
		ignore: NewIgnoreMatcher(append(append([]string{}, defaultIgnorePatterns...), ignorePatterns...)),
	}
}

// Inspect lstats a raw path and returns a Path object. Symlinks are not
// followed; whether the path is a mount point is determined from its parent.
func (m *OSFilesystemManager) Inspect(rawPath string) (*hm.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&(os.ModeDevice|os.ModeNamedPipe|os.ModeSocket) != 0 {
		return nil, fmt.Errorf("special files not supported: %s", absPath)
	}

	return hm.NewPath(absPath, info, pathAttrs(absPath, info)), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *hm.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// FindFiles discovers regular files under the given directory path, recursively.
// Directories listed in exclude are skipped entirely. Symlinks are reported
// so the caller can record them as skipped.
func (m *OSFilesystemManager) FindFiles(root *hm.Path, exclude []string) ([]*hm.Path, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root.String())
	}

	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if e != "" {
			skip[filepath.Clean(e)] = true
		}
	}

	var paths []*hm.Path
	err := filepath.WalkDir(root.String(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root.String() && skip[filepath.Clean(p)] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		paths = append(paths, hm.NewPath(p, info, pathAttrs(p, info)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return paths, nil
}

// IsIgnored reports whether a file matches the ignore patterns, relative to root.
func (m *OSFilesystemManager) IsIgnored(path *hm.Path, root string) bool {
	rel, err := filepath.Rel(root, path.String())
	if err != nil {
		rel = filepath.Base(path.String())
	}
	return m.ignore.Match(rel)
}

// IsFile reports whether a regular file exists at absPath.
func (m *OSFilesystemManager) IsFile(absPath string) (bool, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// MkdirAll creates dir and any missing parents.
func (m *OSFilesystemManager) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Rename moves src to dst. Both must be on the same filesystem.
func (m *OSFilesystemManager) Rename(src, dst string) error {
	return os.Rename(src, dst)
}

// Compile-time check that OSFilesystemManager implements hm.FilesystemManager interface
var _ hm.FilesystemManager = (*OSFilesystemManager)(nil)
