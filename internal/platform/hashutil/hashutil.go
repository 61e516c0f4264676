// Package hashutil is the single content hasher used for both chunk and
// whole-file checksums: hex-encoded SHA-256.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// HexLen is the length of an encoded digest.
const HexLen = 64

func SumHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func SumReaderHex(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
