// Package swap defines the data model shared by every ledger and protocol
// package in cnd: the secret/hash pair that binds a swap together, the
// per-swap identifiers, and the state a swap moves through from proposal to
// terminal outcome.
package swap

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SecretSize is the fixed length, in bytes, of a Secret and its SecretHash.
const SecretSize = 32

// Secret is the pre-image an Alice holds from swap inception until she
// reveals it by redeeming the beta HTLC. Any 32-byte value is a valid
// Secret, including the all-zero value.
type Secret [SecretSize]byte

// SecretHash is SHA256(Secret). Once a Secret is revealed, every observer
// can verify hash(secret) == secret_hash.
type SecretHash [SecretSize]byte

// Hash returns the SHA-256 hash of s.
func (s Secret) Hash() SecretHash {
	return SecretHash(sha256.Sum256(s[:]))
}

// Matches reports whether s hashes to h.
func (s Secret) Matches(h SecretHash) bool {
	return s.Hash() == h
}

// String renders the secret as lowercase hex with no prefix.
func (s Secret) String() string {
	return hex.EncodeToString(s[:])
}

// String renders the hash as lowercase hex with no prefix.
func (h SecretHash) String() string {
	return hex.EncodeToString(h[:])
}

// InvalidLengthError is returned when a hex-encoded secret or hash does not
// decode to exactly SecretSize bytes.
type InvalidLengthError struct {
	Expected int
	Got      int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid length: expected %d bytes, got %d",
		e.Expected, e.Got)
}

// SecretFromHex decodes a lowercase-hex-encoded secret.
func SecretFromHex(s string) (Secret, error) {
	var out Secret
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != SecretSize {
		return out, &InvalidLengthError{Expected: SecretSize, Got: len(b)}
	}
	copy(out[:], b)
	return out, nil
}

// SecretHashFromHex decodes a lowercase-hex-encoded secret hash.
func SecretHashFromHex(s string) (SecretHash, error) {
	var out SecretHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != SecretSize {
		return out, &InvalidLengthError{Expected: SecretSize, Got: len(b)}
	}
	copy(out[:], b)
	return out, nil
}
