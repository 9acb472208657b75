//go:build linux

package fs

import (
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"hashmove/internal/hm"
)

// pathAttrs extracts ctime and mount-point status from Linux stat data.
// A path is a mount point when its device differs from its parent's, or when
// it shares the parent's inode (the root of a filesystem).
func pathAttrs(absPath string, info fs.FileInfo) hm.PathAttrs {
	attrs := hm.PathAttrs{Symlink: info.Mode()&fs.ModeSymlink != 0}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return attrs
	}
	attrs.ChangedAt = time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)

	if attrs.Symlink {
		return attrs
	}
	parent, err := os.Lstat(filepath.Dir(absPath))
	if err != nil {
		return attrs
	}
	pstat, ok := parent.Sys().(*syscall.Stat_t)
	if !ok {
		return attrs
	}
	attrs.Mount = stat.Dev != pstat.Dev || stat.Ino == pstat.Ino
	return attrs
}
