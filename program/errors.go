package program

import "errors"

// Registry errors. Every error is terminal for the call that raised it: a
// failed call leaves account state byte-for-byte unchanged, and retrying with
// the same state and input fails deterministically.
var (
	// ErrInvalidInstructionData is returned when the instruction payload cannot
	// be decoded: unknown or reserved discriminant, or malformed trailing data.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrInvalidAccountData is returned when an account buffer does not match
	// the fixed registry layout.
	ErrInvalidAccountData = errors.New("invalid account data")

	// ErrAlreadyInitialized is returned when Init targets an account that is
	// already initialized.
	ErrAlreadyInitialized = errors.New("registry account already initialized")

	// ErrNotInitialized is returned when an operation other than Init targets
	// an account that has not been initialized, or has been closed.
	ErrNotInitialized = errors.New("registry account not initialized")

	// ErrUnauthorized is returned when the first account is not a signer, or
	// its identity does not match the authority recorded at initialization.
	ErrUnauthorized = errors.New("signer is not the registry authority")

	// ErrCapacityExceeded is returned when an add would grow a shard beyond
	// its fixed capacity, or a map beyond its shard limit.
	ErrCapacityExceeded = errors.New("registry capacity exceeded")

	// ErrDuplicateEntry is returned when the identity to add is already
	// present.
	ErrDuplicateEntry = errors.New("identity already present")

	// ErrEntryNotFound is returned when the identity to remove is not present.
	ErrEntryNotFound = errors.New("identity not present")

	// ErrNotRentExempt is returned when Init targets an account whose backing
	// balance is below the rent-exemption minimum for its size.
	ErrNotRentExempt = errors.New("registry account not rent exempt")

	// ErrOverflow is returned when a balance addition overflows on Close.
	ErrOverflow = errors.New("balance calculation overflow")
)

// errorCodes assigns each registry error a stable numeric code for transport
// across process boundaries.
var errorCodes = map[error]uint32{
	ErrInvalidInstructionData: 0,
	ErrInvalidAccountData:     1,
	ErrAlreadyInitialized:     2,
	ErrNotInitialized:         3,
	ErrUnauthorized:           4,
	ErrCapacityExceeded:       5,
	ErrDuplicateEntry:         6,
	ErrEntryNotFound:          7,
	ErrNotRentExempt:          8,
	ErrOverflow:               9,
}

// ErrorCode returns the stable numeric code for a registry error. The second
// return is false for errors outside the registry taxonomy.
func ErrorCode(err error) (uint32, bool) {
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return 0, false
}
