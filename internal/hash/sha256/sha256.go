// Package sha256 provides the SHA-256 content fingerprinter used for
// duplicate-page suppression.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher using SHA-256. Fingerprints are computed
// over converted Markdown rather than raw HTML, so cosmetic markup
// differences between mirrored pages do not defeat deduplication.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
