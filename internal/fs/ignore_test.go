package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.part"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].pattern != "*.part" {
			t.Errorf("expected *.part, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("classifies basename, path and subtree patterns", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.log", "build/output", "cache/", "/tmp/*.part"})
		want := []struct {
			pattern string
			kind    patternKind
		}{
			{"*.log", matchBasename},
			{"build/output", matchPath},
			{"cache", matchSubtree},
			{"tmp/*.part", matchPath},
		}
		for i, w := range want {
			if m.patterns[i].pattern != w.pattern || m.patterns[i].kind != w.kind {
				t.Errorf("pattern %d = %+v, want %+v", i, m.patterns[i], w)
			}
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	archive := []string{"*.part", "thumbnail/", "banners/*.gif", ".DS_Store", "*/drafts/"}

	tests := []struct {
		name     string
		patterns []string
		rel      string
		want     bool
	}{
		{"partial download in root", archive, "x.part", true},
		{"partial download nested", archive, filepath.Join("data", "aa", "x.part"), true},
		{"regular image", archive, filepath.Join("images", "foo.png"), false},
		{"thumbnail subtree", archive, filepath.Join("thumbnail", "aa", "bb", "x.jpg"), true},
		{"file named like the subtree", archive, "thumbnail", false},
		{"path glob matches", archive, filepath.Join("banners", "a.gif"), true},
		{"path glob is anchored", archive, filepath.Join("x", "banners", "a.gif"), false},
		{"exact basename nested", archive, filepath.Join("a", "b", ".DS_Store"), true},
		{"subtree glob at any level", archive, filepath.Join("user", "drafts", "x.jpg"), true},
		{"question mark is one char", []string{"?.txt"}, "ab.txt", false},
		{"character class", []string{"*.[jp]pe"}, "a.jpe", true},
		{"malformed pattern never matches", []string{"[abc"}, "a", false},
		{"no patterns", nil, "anything.png", false},
		{"empty path", archive, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewIgnoreMatcher(tt.patterns).Match(tt.rel); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads patterns from file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, ".hmignore")
		content := "*.part\n# partial downloads\n\nthumbnail/\nbanners/*.gif\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		// Raw lines; NewIgnoreMatcher drops blanks and comments.
		if len(patterns) != 5 {
			t.Fatalf("expected 5 raw lines, got %d", len(patterns))
		}

		m := NewIgnoreMatcher(patterns)
		if len(m.patterns) != 3 {
			t.Errorf("expected 3 parsed patterns, got %d", len(m.patterns))
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile("/nonexistent/.hmignore")
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}
