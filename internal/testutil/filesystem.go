package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"hashmove/internal/hm"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	Ctime       time.Time
	IsDirectory bool
	Symlink     bool
	Mount       bool
}

// MockFilesystemManager is an in-memory filesystem for testing. Safe for concurrent use.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string]*MockFile

	// IgnorePatterns are basename globs reported by IsIgnored.
	IgnorePatterns []string

	// FailRenames makes the next n Rename calls fail. With FailRenamesUnder
	// set, only renames whose source is under that directory count.
	FailRenames      int
	FailRenamesUnder string
	renames     int
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockFile),
	}
}

// AddFile adds a regular file with a fixed timestamp.
func (m *MockFilesystemManager) AddFile(path string, content []byte) *MockFile {
	ts := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	return m.AddFileAt(path, content, ts, ts.Add(time.Minute))
}

// AddFileAt adds a regular file with explicit mtime and ctime.
func (m *MockFilesystemManager) AddFileAt(path string, content []byte, mtime, ctime time.Time) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     mtime,
		Ctime:       ctime,
	}
	m.files[filepath.Clean(path)] = f
	return f
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = &MockFile{Permissions: 0755, IsDirectory: true}
}

// Exists reports whether any entry exists at path.
func (m *MockFilesystemManager) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

// Content returns the bytes of a file, or nil if absent.
func (m *MockFilesystemManager) Content(path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[filepath.Clean(path)]; ok {
		return f.Content
	}
	return nil
}

// Renames returns how many renames succeeded.
func (m *MockFilesystemManager) Renames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renames
}

func (m *MockFilesystemManager) Inspect(rawPath string) (*hm.Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	absPath := filepath.Clean(rawPath)
	file, ok := m.files[absPath]
	if !ok {
		if !m.hasChildrenLocked(absPath) {
			return nil, fmt.Errorf("file not found: %s", absPath)
		}
		file = &MockFile{IsDirectory: true, Permissions: 0755}
	}
	return m.pathLocked(absPath, file), nil
}

func (m *MockFilesystemManager) pathLocked(absPath string, file *MockFile) *hm.Path {
	mode := file.Permissions
	if file.IsDirectory {
		mode |= fs.ModeDir
	}
	if file.Symlink {
		mode |= fs.ModeSymlink
	}
	info := &mockFileInfo{
		name:    filepath.Base(absPath),
		size:    int64(len(file.Content)),
		mode:    mode,
		modTime: file.ModTime,
	}
	return hm.NewPath(absPath, info, hm.PathAttrs{
		Symlink:   file.Symlink,
		Mount:     file.Mount,
		ChangedAt: file.Ctime,
	})
}

func (m *MockFilesystemManager) hasChildrenLocked(dir string) bool {
	prefix := dir + string(filepath.Separator)
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (m *MockFilesystemManager) Open(path *hm.Path) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

// FindFiles returns every non-directory entry under root in lexical order.
func (m *MockFilesystemManager) FindFiles(root *hm.Path, exclude []string) ([]*hm.Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !root.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root.String())
	}
	prefix := root.String() + string(filepath.Separator)

	var keys []string
outer:
	for p, f := range m.files {
		if f.IsDirectory || !strings.HasPrefix(p, prefix) {
			continue
		}
		for _, e := range exclude {
			if e != "" && strings.HasPrefix(p, filepath.Clean(e)+string(filepath.Separator)) {
				continue outer
			}
		}
		keys = append(keys, p)
	}
	sort.Strings(keys)

	paths := make([]*hm.Path, 0, len(keys))
	for _, k := range keys {
		paths = append(paths, m.pathLocked(k, m.files[k]))
	}
	return paths, nil
}

func (m *MockFilesystemManager) IsIgnored(path *hm.Path, _ string) bool {
	base := filepath.Base(path.String())
	for _, pattern := range m.IgnorePatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (m *MockFilesystemManager) IsFile(absPath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(absPath)]
	return ok && !f.IsDirectory, nil
}

func (m *MockFilesystemManager) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = filepath.Clean(dir)
	if f, ok := m.files[dir]; ok && !f.IsDirectory {
		return fmt.Errorf("not a directory: %s", dir)
	}
	m.files[dir] = &MockFile{Permissions: 0755, IsDirectory: true}
	return nil
}

func (m *MockFilesystemManager) Rename(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, dst = filepath.Clean(src), filepath.Clean(dst)
	if m.FailRenames > 0 && (m.FailRenamesUnder == "" || strings.HasPrefix(src, m.FailRenamesUnder+string(filepath.Separator))) {
		m.FailRenames--
		return fmt.Errorf("rename %s: injected failure", src)
	}
	f, ok := m.files[src]
	if !ok {
		return fmt.Errorf("rename %s: file not found", src)
	}
	if d, ok := m.files[filepath.Dir(dst)]; !ok || !d.IsDirectory {
		return fmt.Errorf("rename %s: parent of %s does not exist", src, dst)
	}
	delete(m.files, src)
	m.files[dst] = f
	m.renames++
	return nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.mode.IsDir() }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ hm.FilesystemManager = (*MockFilesystemManager)(nil)
