package keystore

import (
	"errors"
	"fmt"

	"github.com/hashicorp/vault/shamir"
)

// SplitSeed splits the master seed into parts shares, any threshold of which
// reconstruct it. The shares must be distributed to separate custodians and
// the original seed erased; the seed is never written to persistent storage
// by this package.
func (k *Keystore) SplitSeed(parts, threshold int) ([][]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if threshold < 2 {
		return nil, errors.New("threshold must be at least 2")
	}
	if parts < threshold {
		return nil, errors.New("parts must be at least the threshold")
	}

	shares, err := shamir.Split(k.masterSeed, parts, threshold)
	if err != nil {
		return nil, fmt.Errorf("could not split master seed: %w", err)
	}
	return shares, nil
}

// CombineSeed reconstructs a keystore from a threshold of Shamir shares.
func CombineSeed(shares [][]byte) (*Keystore, error) {
	if len(shares) < 2 {
		return nil, errors.New("at least 2 shares required")
	}

	seed, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("could not combine shares: %w", err)
	}
	return New(seed)
}
