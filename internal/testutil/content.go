package testutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// PNG is the smallest header mimetype recognises as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// SHA256Hex returns the lowercase hex digest stored in files.hash.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
