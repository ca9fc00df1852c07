// Package keystore provides deterministic key management for registry
// authorities. Keypairs are derived from a master seed, suitable for
// development and operation from a single secret, and the seed itself can be
// split into Shamir shares for multi-custodian recovery.
package keystore

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/tokengate/token-allowlist-backend/interfaces"
)

// minSeedLen is the smallest accepted master seed.
const minSeedLen = 32

// Keypair is an Ed25519 signing key and its public identity.
type Keypair struct {
	Identity   interfaces.Identity
	PrivateKey ed25519.PrivateKey
}

// Sign signs a message with the keypair's private key.
func (kp Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, message)
}

// Keystore derives Ed25519 keypairs from a master seed. Derivation is
// deterministic: the same seed and label always yield the same keypair.
type Keystore struct {
	mu         sync.RWMutex
	masterSeed []byte
}

// New creates a keystore from a master seed of at least 32 bytes.
func New(masterSeed []byte) (*Keystore, error) {
	if len(masterSeed) < minSeedLen {
		return nil, errors.New("master seed must be at least 32 bytes")
	}
	return &Keystore{masterSeed: append([]byte(nil), masterSeed...)}, nil
}

// argon2 parameters: memory-hard enough for an operator passphrase without
// stalling startup.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// FromPassphrase creates a keystore whose master seed is derived from an
// operator passphrase with argon2id. The salt namespaces deployments so the
// same passphrase yields unrelated seeds per deployment.
func FromPassphrase(passphrase, salt string) (*Keystore, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}
	seed := argon2.IDKey([]byte(passphrase), []byte(salt), argonTime, argonMemory, argonThreads, minSeedLen)
	return New(seed)
}

// DeriveKeypair returns the keypair for a label. Labels namespace keys by
// role, e.g. "authority" or "treasury".
func (k *Keystore) DeriveKeypair(label string) (Keypair, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if label == "" {
		return Keypair{}, errors.New("derivation label must not be empty")
	}

	h := sha256.New()
	h.Write(k.masterSeed)
	h.Write([]byte{0})
	h.Write([]byte(label))
	seed := h.Sum(nil)

	priv := ed25519.NewKeyFromSeed(seed)
	id, err := interfaces.NewIdentityFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return Keypair{}, fmt.Errorf("could not derive identity: %w", err)
	}

	return Keypair{Identity: id, PrivateKey: priv}, nil
}
