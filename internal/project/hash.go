package project

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a SHA-256 hash, layout-compatible with source.File.Hash.
type Digest [32]byte

// Combine hashes content followed by parts. Part order matters.
func Combine(content Digest, parts ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range parts {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// DigestOf hashes raw bytes.
func DigestOf(b []byte) Digest {
	return sha256.Sum256(b)
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}
