package merkle

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// HashSize is the width of every digest in the tree.
const HashSize = 32

// Hash is a 32-byte blake3 digest.
type Hash [HashSize]byte

// emptyRoot is the root of a tree with no leaves: blake3 of the empty byte string.
var emptyRoot = blake3.Sum256(nil)

// EmptyRoot returns the sentinel root digest of an empty leaf sequence.
func EmptyRoot() Hash {
	return emptyRoot
}

// HashLeaf computes the digest of one encoded leaf.
func HashLeaf(data []byte) Hash {
	return blake3.Sum256(data)
}

// HashNode combines two child digests, left before right.
func HashNode(left, right Hash) Hash {
	var buf [2 * HashSize]byte
	copy(buf[:HashSize], left[:])
	copy(buf[HashSize:], right[:])

	return blake3.Sum256(buf[:])
}

// String returns the lowercase hex form of the digest.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes a hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash

	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decode hex:\n%w", err)
	}

	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length: got %d, want %d", len(b), HashSize)
	}

	copy(h[:], b)

	return h, nil
}

// HashFromBytes copies a 32-byte slice into a Hash. Returns false on length mismatch.
func HashFromBytes(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != HashSize {
		return h, false
	}

	copy(h[:], b)

	return h, true
}

// MarshalText implements encoding.TextMarshaler so digests travel as hex in JSON.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}

	*h = parsed

	return nil
}
