// Package checksum provides content digests for files and single lines.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Line returns a fast non-cryptographic digest of one line of text.
// It is only used to detect unchanged lines between parses.
func Line(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Lines digests every line in order.
func Lines(lines []string) []uint64 {
	out := make([]uint64, len(lines))
	for i, l := range lines {
		out[i] = Line(l)
	}
	return out
}
