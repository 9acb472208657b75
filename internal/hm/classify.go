package hm

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLimit is how many leading bytes are kept for MIME detection.
// It matches mimetype's default read limit.
const sniffLimit = 3072

// defaultExtension is used when extension fixing is on and the detected type
// has no registered extension.
const defaultExtension = ".bin"

// Identity is the content identity of a file.
type Identity struct {
	Hash string // lowercase hex SHA-256
	Mime string // detected from content, parameters stripped
	Ext  string // extension the canonical path will carry
	Size int64
}

// Classifier hashes file content and determines its MIME type and stored extension.
type Classifier struct {
	// FixExtensions derives the extension from the sniffed MIME type instead of the filename.
	FixExtensions bool
	// FixJPE rewrites the legacy ".jpe" spelling to ".jpg".
	FixJPE bool
}

// Classify streams r through SHA-256 once, sniffing the MIME type from the
// leading bytes on the way. originalExt is the extension of the source
// filename, including the dot.
func (c Classifier) Classify(r io.Reader, originalExt string) (*Identity, error) {
	h := sha256.New()

	header := make([]byte, sniffLimit)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("reading file header: %w", err)
	}
	header = header[:n]
	h.Write(header)

	rest, err := io.Copy(h, r)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	detected := mimetype.Detect(header)
	mime := detected.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	ext := originalExt
	if c.FixExtensions {
		ext = detected.Extension()
		if ext == "" {
			ext = defaultExtension
		}
	}
	if c.FixJPE {
		ext = NormalizeExtension(ext)
	}

	return &Identity{
		Hash: hex.EncodeToString(h.Sum(nil)),
		Mime: mime,
		Ext:  ext,
		Size: int64(n) + rest,
	}, nil
}

// NormalizeExtension maps the legacy ".jpe" spelling to ".jpg".
// Any other extension is returned unchanged.
func NormalizeExtension(ext string) string {
	if ext == ".jpe" {
		return ".jpg"
	}
	return ext
}
