package hm_test

import (
	"errors"
	"testing"

	"hashmove/internal/hm"
)

const testHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func TestShardDir(t *testing.T) {
	tests := []struct {
		hash    string
		want    string
		wantErr bool
	}{
		{hash: testHash, want: "9f/86"},
		{hash: "abcd", want: "ab/cd"},
		{hash: "abc", wantErr: true},
		{hash: "ABCD1234", wantErr: true},
		{hash: "zzzz", wantErr: true},
		{hash: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.hash, func(t *testing.T) {
			got, err := hm.ShardDir(tt.hash)
			if tt.wantErr {
				if !errors.Is(err, hm.ErrInvalidHash) {
					t.Errorf("ShardDir(%q) error = %v, want ErrInvalidHash", tt.hash, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ShardDir(%q) error = %v", tt.hash, err)
			}
			if got != tt.want {
				t.Errorf("ShardDir(%q) = %q, want %q", tt.hash, got, tt.want)
			}
		})
	}
}

func TestCanonicalPath(t *testing.T) {
	got, err := hm.CanonicalPath(testHash, ".png")
	if err != nil {
		t.Fatalf("CanonicalPath() error = %v", err)
	}
	want := "/9f/86/" + testHash + ".png"
	if got != want {
		t.Errorf("CanonicalPath() = %q, want %q", got, want)
	}

	noExt, err := hm.CanonicalPath(testHash, "")
	if err != nil {
		t.Fatalf("CanonicalPath() error = %v", err)
	}
	if noExt != "/9f/86/"+testHash {
		t.Errorf("CanonicalPath() without ext = %q", noExt)
	}

	if _, err := hm.CanonicalPath("X", ".png"); err == nil {
		t.Error("CanonicalPath() expected error for invalid hash")
	}
}

func TestIsCanonical(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"sharded", "/9f/86/" + testHash + ".png", true},
		{"sharded without extension", "/9f/86/" + testHash, true},
		{"wrong shard", "/ab/cd/" + testHash + ".png", false},
		{"flat", "/images/foo.png", false},
		{"short hash", "/ab/cd/abcd.png", false},
		{"nested deeper", "/data/9f/86/" + testHash + ".png", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hm.IsCanonical(tt.path); got != tt.want {
				t.Errorf("IsCanonical(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestWebPath(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		abs     string
		want    string
		wantErr bool
	}{
		{"under root", "/srv/data", "/srv/data/images/foo.png", "/images/foo.png", false},
		{"root with trailing slash", "/srv/data/", "/srv/data/foo.png", "/foo.png", false},
		{"unclean path", "/srv/data", "/srv/data/a/../b.png", "/b.png", false},
		{"sibling prefix", "/srv/data", "/srv/database/foo.png", "", true},
		{"outside", "/srv/data", "/etc/passwd", "", true},
		{"root itself", "/srv/data", "/srv/data", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hm.WebPath(tt.root, tt.abs)
			if tt.wantErr {
				if !errors.Is(err, hm.ErrOutsideRoot) {
					t.Errorf("WebPath() error = %v, want ErrOutsideRoot", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("WebPath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("WebPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFSPath(t *testing.T) {
	if got := hm.FSPath("/srv/data", "/ab/cd/x.png"); got != "/srv/data/ab/cd/x.png" {
		t.Errorf("FSPath() = %q", got)
	}
	if got := hm.FSPath("/srv/data", "ab/cd/x.png"); got != "/srv/data/ab/cd/x.png" {
		t.Errorf("FSPath() without slash = %q", got)
	}
}

func TestSlashHelpers(t *testing.T) {
	if got := hm.EnsureLeadingSlash("a/b"); got != "/a/b" {
		t.Errorf("EnsureLeadingSlash() = %q", got)
	}
	if got := hm.EnsureLeadingSlash("/a/b"); got != "/a/b" {
		t.Errorf("EnsureLeadingSlash() doubled the slash: %q", got)
	}
	if got := hm.TrimLeadingSlash("/a/b"); got != "a/b" {
		t.Errorf("TrimLeadingSlash() = %q", got)
	}
}

func TestSplitHashName(t *testing.T) {
	hash, ext := hm.SplitHashName("/ab/cd/abcd1234.png")
	if hash != "abcd1234" || ext != ".png" {
		t.Errorf("SplitHashName() = (%q, %q)", hash, ext)
	}
	hash, ext = hm.SplitHashName("/ab/cd/abcd1234")
	if hash != "abcd1234" || ext != "" {
		t.Errorf("SplitHashName() without ext = (%q, %q)", hash, ext)
	}
}
