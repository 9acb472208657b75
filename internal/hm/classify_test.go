package hm_test

import (
	"bytes"
	"strings"
	"testing"

	"hashmove/internal/hm"
	"hashmove/internal/testutil"
)

func TestClassifier_Classify(t *testing.T) {
	t.Run("hashes the whole stream", func(t *testing.T) {
		data := bytes.Repeat([]byte("a"), 10000)
		id, err := hm.Classifier{}.Classify(bytes.NewReader(data), ".txt")
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if id.Hash != testutil.SHA256Hex(data) {
			t.Errorf("Hash = %s, want %s", id.Hash, testutil.SHA256Hex(data))
		}
		if id.Size != int64(len(data)) {
			t.Errorf("Size = %d, want %d", id.Size, len(data))
		}
	})

	t.Run("short input", func(t *testing.T) {
		id, err := hm.Classifier{}.Classify(strings.NewReader("foo"), ".txt")
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if id.Hash != testutil.SHA256Hex([]byte("foo")) {
			t.Errorf("Hash = %s", id.Hash)
		}
		if id.Mime != "text/plain" {
			t.Errorf("Mime = %q, want parameters stripped", id.Mime)
		}
	})

	tests := []struct {
		name        string
		classifier  hm.Classifier
		data        []byte
		originalExt string
		wantMime    string
		wantExt     string
	}{
		{
			name:        "keeps original extension when fixing is off",
			classifier:  hm.Classifier{},
			data:        testutil.PNG,
			originalExt: ".dat",
			wantMime:    "image/png",
			wantExt:     ".dat",
		},
		{
			name:        "derives extension from content",
			classifier:  hm.Classifier{FixExtensions: true},
			data:        testutil.PNG,
			originalExt: ".dat",
			wantMime:    "image/png",
			wantExt:     ".png",
		},
		{
			name:        "jpe normalized",
			classifier:  hm.Classifier{FixJPE: true},
			data:        []byte("plain text"),
			originalExt: ".jpe",
			wantMime:    "text/plain",
			wantExt:     ".jpg",
		},
		{
			name:        "jpe kept without the fix",
			classifier:  hm.Classifier{},
			data:        []byte("plain text"),
			originalExt: ".jpe",
			wantMime:    "text/plain",
			wantExt:     ".jpe",
		},
		{
			name:        "unknown binary falls back to bin",
			classifier:  hm.Classifier{FixExtensions: true},
			data:        []byte{0x00, 0xff, 0x00, 0xfe, 0x01, 0x02},
			originalExt: ".weird",
			wantMime:    "application/octet-stream",
			wantExt:     ".bin",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tt.classifier.Classify(bytes.NewReader(tt.data), tt.originalExt)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if id.Mime != tt.wantMime {
				t.Errorf("Mime = %q, want %q", id.Mime, tt.wantMime)
			}
			if id.Ext != tt.wantExt {
				t.Errorf("Ext = %q, want %q", id.Ext, tt.wantExt)
			}
		})
	}
}

func TestNormalizeExtension(t *testing.T) {
	for in, want := range map[string]string{".jpe": ".jpg", ".jpg": ".jpg", ".png": ".png", "": ""} {
		if got := hm.NormalizeExtension(in); got != want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", in, got, want)
		}
	}
}
