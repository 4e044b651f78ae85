package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Fingerprinter computes a content hash for an extracted image.
type Fingerprinter func(imagePath string) (string, error)

// FileFingerprint hashes the image file's bytes with SHA-256.
func FileFingerprint(imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// pathFingerprint is used when the image bytes cannot be read, so repeated
// references to the same file are still collapsed.
func pathFingerprint(imagePath string) string {
	sum := sha256.Sum256([]byte("path:" + imagePath))
	return hex.EncodeToString(sum[:])
}

// fingerprintSet is the per-pass duplicate registry.
type fingerprintSet map[string]struct{}

// add inserts fp and reports whether it was new.
func (s fingerprintSet) add(fp string) bool {
	if _, ok := s[fp]; ok {
		return false
	}
	s[fp] = struct{}{}
	return true
}
