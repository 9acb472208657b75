package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-root ignore file, read from the data directory.
const IgnoreFileName = ".hmignore"

// defaultIgnorePatterns are always applied regardless of config or .hmignore.
var defaultIgnorePatterns = []string{IgnoreFileName}

type patternKind int

const (
	matchBasename patternKind = iota // no '/': glob against the basename
	matchPath                        // contains '/': glob against the relative path
	matchSubtree                     // trailing '/': everything under a directory glob
)

type ignorePattern struct {
	pattern string
	kind    patternKind
}

// IgnoreMatcher checks file paths against a set of ignore patterns.
// Patterns without '/' match the basename, patterns with '/' match the path
// relative to the root, and a pattern ending in '/' matches every file below
// a directory whose relative path matches it.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p := ignorePattern{pattern: strings.TrimPrefix(raw, "/"), kind: matchBasename}
		switch {
		case strings.HasSuffix(raw, "/"):
			p.pattern = strings.TrimSuffix(p.pattern, "/")
			p.kind = matchSubtree
		case strings.Contains(raw, "/"):
			p.kind = matchPath
		}
		patterns = append(patterns, p)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the given relative path should be ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 || relativePath == "" {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		switch p.kind {
		case matchBasename:
			if globMatch(p.pattern, basename) {
				return true
			}
		case matchPath:
			if globMatch(p.pattern, normalized) {
				return true
			}
		case matchSubtree:
			dir := normalized
			for {
				i := strings.LastIndexByte(dir, '/')
				if i < 0 {
					break
				}
				dir = dir[:i]
				if globMatch(p.pattern, dir) {
					return true
				}
			}
		}
	}
	return false
}

// globMatch treats a malformed pattern as a non-match.
func globMatch(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
