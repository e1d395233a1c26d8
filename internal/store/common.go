// Package store persists target configurations and encoding table blobs in a key-value store.
package store

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Prefix constants for all record types
const (
	prefixConfig byte = iota + 1
	prefixTables
)

// makeKey creates a key from a prefix and an identifier
func makeKey(prefix byte, id []byte) []byte {
	key := make([]byte, 1+len(id))
	key[0] = prefix
	copy(key[1:], id)
	return key
}

// Digest is the blake2b-256 hash of a table blob.
type Digest [blake2b.Size256]byte

// DigestOf hashes a serialized table blob.
func DigestOf(blob []byte) Digest {
	return blake2b.Sum256(blob)
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest decodes the hex form produced by String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, err
	}
	if len(raw) != len(d) {
		return d, hex.ErrLength
	}
	copy(d[:], raw)
	return d, nil
}
