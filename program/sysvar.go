package program

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/tokengate/token-allowlist-backend/interfaces"
)

// ID is the registry program's own identity on the ledger.
var ID = interfaces.Identity(sha256.Sum256([]byte("tokengate/allowlist-registry/v1")))

// RentSysvarID is the well-known identity of the rent sysvar account. Its
// data holds the packed Rent parameters used by Init to enforce
// rent-exemption on newly created registry accounts.
var RentSysvarID = interfaces.Identity(sha256.Sum256([]byte("tokengate/sysvar/rent")))

// rentAccountOverhead is the bookkeeping size charged per account on top of
// its data length when computing the rent-exemption minimum.
const rentAccountOverhead = 128

// rentDataSize is the packed size of the Rent parameters.
const rentDataSize = 16

// Rent holds the host's storage pricing parameters.
type Rent struct {
	// PricePerByteYear is the balance charged per byte of account data per
	// year.
	PricePerByteYear uint64

	// ExemptionYears is how many years of rent an account must hold to be
	// exempt from collection.
	ExemptionYears uint64
}

// DefaultRent is the pricing used by a freshly constructed ledger.
var DefaultRent = Rent{PricePerByteYear: 3480, ExemptionYears: 2}

// MinimumBalance returns the smallest backing balance that makes an account
// of the given data length rent exempt.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (rentAccountOverhead + uint64(dataLen)) * r.PricePerByteYear * r.ExemptionYears
}

// IsExempt reports whether an account with the given balance and data length
// is rent exempt.
func (r Rent) IsExempt(balance uint64, dataLen int) bool {
	return balance >= r.MinimumBalance(dataLen)
}

// Pack serializes the rent parameters into a fresh sysvar buffer.
func (r Rent) Pack() []byte {
	data := make([]byte, rentDataSize)
	binary.LittleEndian.PutUint64(data[0:], r.PricePerByteYear)
	binary.LittleEndian.PutUint64(data[8:], r.ExemptionYears)
	return data
}

// UnpackRent decodes rent parameters from a sysvar account buffer.
func UnpackRent(data []byte) (Rent, error) {
	if len(data) != rentDataSize {
		return Rent{}, ErrInvalidAccountData
	}
	return Rent{
		PricePerByteYear: binary.LittleEndian.Uint64(data[0:]),
		ExemptionYears:   binary.LittleEndian.Uint64(data[8:]),
	}, nil
}
