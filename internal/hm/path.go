package hm

import (
	"io/fs"
	"time"
)

// PathAttrs carries the facts about a path that FileInfo alone does not.
type PathAttrs struct {
	Symlink   bool
	Mount     bool
	ChangedAt time.Time // ctime; falls back to ModTime where unavailable
}

// Path represents an inspected filesystem path with cached metadata.
// Path objects are created by FilesystemManager.Inspect, which lstats the path
// without following symlinks so the caller can decide to skip them.
type Path struct {
	absPath string
	info    fs.FileInfo
	attrs   PathAttrs
}

// NewPath creates a Path from its components.
// This is primarily for use by FilesystemManager implementations.
func NewPath(absPath string, info fs.FileInfo, attrs PathAttrs) *Path {
	if attrs.ChangedAt.IsZero() && info != nil {
		attrs.ChangedAt = info.ModTime()
	}
	return &Path{
		absPath: absPath,
		info:    info,
		attrs:   attrs,
	}
}

// String returns the absolute path as a string.
func (p *Path) String() string {
	return p.absPath
}

// IsDir returns true if this path points to a directory.
func (p *Path) IsDir() bool {
	return p.info != nil && p.info.IsDir()
}

// IsSymlink returns true if the path itself is a symbolic link.
func (p *Path) IsSymlink() bool {
	return p.attrs.Symlink
}

// IsMount returns true if the path is a mount point.
func (p *Path) IsMount() bool {
	return p.attrs.Mount
}

// Size returns the cached size in bytes.
func (p *Path) Size() int64 {
	if p.info == nil {
		return 0
	}
	return p.info.Size()
}

// ModTime returns the cached modification time.
func (p *Path) ModTime() time.Time {
	if p.info == nil {
		return time.Time{}
	}
	return p.info.ModTime()
}

// ChangedAt returns the cached status change time.
func (p *Path) ChangedAt() time.Time {
	return p.attrs.ChangedAt
}

// Info returns the cached file info from when the path was inspected.
func (p *Path) Info() fs.FileInfo {
	return p.info
}
