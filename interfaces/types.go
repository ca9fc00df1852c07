// Package interfaces defines the core types and contracts shared across the
// allowlist backend. It provides the boundary between components without
// implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// IdentityLen is the byte length of a public identity.
const IdentityLen = 32

// Identity is a fixed-width public identifier for a participant, authority,
// or account. Identities are Ed25519 public keys; this package treats them
// as opaque beyond equality comparison.
type Identity [IdentityLen]byte

// NewIdentityFromBytes creates an identity from a raw 32-byte slice.
func NewIdentityFromBytes(source []byte) (Identity, error) {
	if len(source) != IdentityLen {
		return Identity{}, errors.New("invalid identity length: must be 32 bytes")
	}

	var id Identity
	copy(id[:], source)
	return id, nil
}

// NewIdentityFromHex creates an identity from a 64-character hex string.
// A leading 0x prefix is accepted and ignored.
func NewIdentityFromHex(source string) (Identity, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 2*IdentityLen {
		return Identity{}, errors.New("invalid identity length: hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewIdentityFromBytes(raw)
}

// String returns the hex string representation of the identity.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 32-byte identity.
func (id Identity) Bytes() []byte {
	return id[:]
}

// Equal compares two identities for equality.
func (id Identity) Equal(other Identity) bool {
	return id == other
}

// IsZero reports whether the identity is the all-zero value.
func (id Identity) IsZero() bool {
	return id == Identity{}
}
