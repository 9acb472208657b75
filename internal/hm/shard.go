package hm

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidHash is returned when a hash is too short or not lowercase hex.
	ErrInvalidHash = errors.New("invalid content hash")

	// ErrOutsideRoot is returned when a filesystem path is not under the storage root.
	ErrOutsideRoot = errors.New("path is outside the storage root")
)

var (
	hexPattern       = regexp.MustCompile(`^[0-9a-f]{4,}$`)
	canonicalPattern = regexp.MustCompile(`^/([0-9a-f]{2})/([0-9a-f]{2})/([0-9a-f]{64})(\.[^/]*)?$`)
)

// ShardDir returns the two-level shard directory for a hash: "ab/cd" for "abcd...".
func ShardDir(hash string) (string, error) {
	if !hexPattern.MatchString(hash) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	return hash[0:2] + "/" + hash[2:4], nil
}

// CanonicalPath returns the web-relative storage path for a hash and extension:
// "/ab/cd/abcd...{ext}". ext is appended verbatim and may be empty.
func CanonicalPath(hash, ext string) (string, error) {
	shard, err := ShardDir(hash)
	if err != nil {
		return "", err
	}
	return "/" + shard + "/" + hash + ext, nil
}

// IsCanonical reports whether a web path already has the sharded layout and
// its shard directories agree with the hash in the filename.
func IsCanonical(webPath string) bool {
	m := canonicalPattern.FindStringSubmatch(webPath)
	if m == nil {
		return false
	}
	return m[3][0:2] == m[1] && m[3][2:4] == m[2]
}

// WebPath strips root from an absolute filesystem path and returns the
// web-relative path with a single leading slash.
func WebPath(root, absPath string) (string, error) {
	root = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(root)), "/")
	p := filepath.ToSlash(filepath.Clean(absPath))
	if root != "" && p != root && !strings.HasPrefix(p, root+"/") {
		return "", fmt.Errorf("%w: %s not under %s", ErrOutsideRoot, absPath, root)
	}
	rel := strings.TrimPrefix(p, root)
	if rel == "" {
		return "", fmt.Errorf("%w: %s is the root itself", ErrOutsideRoot, absPath)
	}
	return EnsureLeadingSlash(rel), nil
}

// FSPath joins a web-relative path onto a storage root.
func FSPath(root, webPath string) string {
	return filepath.Join(root, filepath.FromSlash(TrimLeadingSlash(webPath)))
}

// TrimLeadingSlash removes one leading "/" if present.
func TrimLeadingSlash(p string) string {
	return strings.TrimPrefix(p, "/")
}

// EnsureLeadingSlash adds a leading "/" unless there already is one.
func EnsureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// SplitHashName splits the basename of a web path into hash and extension,
// e.g. "/ab/cd/abcd1234.png" -> ("abcd1234", ".png").
func SplitHashName(webPath string) (hash, ext string) {
	base := path.Base(webPath)
	ext = path.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}
