//go:build !linux

package fs

import (
	"io/fs"

	"hashmove/internal/hm"
)

// pathAttrs reports symlinks only; ctime falls back to the modification time
// and mount points are not detected.
func pathAttrs(_ string, info fs.FileInfo) hm.PathAttrs {
	return hm.PathAttrs{Symlink: info.Mode()&fs.ModeSymlink != 0}
}
