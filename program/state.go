package program

import (
	"encoding/binary"

	"github.com/tokengate/token-allowlist-backend/interfaces"
)

// Fixed account layout. All integers are little-endian.
//
//	initialized  1 byte
//	authority    32 bytes
//	capacity     8 bytes (maxCapacity for shards, maxShards for maps)
//	count        4 bytes
//	entries      40 bytes each for shards (identity + allocation),
//	             32 bytes each for maps (shard reference)
const (
	initializedBytes = 1
	authorityBytes   = 32
	capacityBytes    = 8
	countBytes       = 4

	headerSize = initializedBytes + authorityBytes + capacityBytes + countBytes

	memberEntryBytes = interfaces.IdentityLen + 8
	shardRefBytes    = interfaces.IdentityLen
)

// MaxShardCapacity is the largest member count a single shard may be created
// with. It bounds the cost of unpacking and repacking one shard account so a
// single call stays under the host's fixed per-call processing budget. Larger
// member sets are handled by multiple shards behind a RegistryMap.
const MaxShardCapacity = 50

// ShardAccountSize returns the exact account buffer size for a shard with the
// given capacity. Buffers are allocated to this size at creation and never
// resized.
func ShardAccountSize(maxCapacity uint64) int {
	return headerSize + memberEntryBytes*int(maxCapacity)
}

// Member is one allow-listed identity and its allocation cap. The allocation
// amount is opaque to the registry beyond storage and retrieval.
type Member struct {
	Identity   interfaces.Identity
	Allocation uint64
}

// RegistryShard is the typed state of one fixed-capacity shard account.
// Members keep insertion order and are unique within the shard.
type RegistryShard struct {
	Initialized bool
	Authority   interfaces.Identity
	MaxCapacity uint64
	Members     []Member
}

// accountHeader is the layout prefix shared by shard and map accounts.
type accountHeader struct {
	initialized bool
	authority   interfaces.Identity
	capacity    uint64
	count       uint32
}

func unpackHeader(data []byte) (accountHeader, error) {
	if len(data) < headerSize {
		return accountHeader{}, ErrInvalidAccountData
	}

	var h accountHeader
	switch data[0] {
	case 0:
	case 1:
		h.initialized = true
	default:
		return accountHeader{}, ErrInvalidAccountData
	}

	copy(h.authority[:], data[initializedBytes:initializedBytes+authorityBytes])
	h.capacity = binary.LittleEndian.Uint64(data[initializedBytes+authorityBytes:])
	h.count = binary.LittleEndian.Uint32(data[initializedBytes+authorityBytes+capacityBytes:])
	return h, nil
}

func packHeader(dst []byte, initialized bool, authority interfaces.Identity, capacity uint64, count uint32) {
	if initialized {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
	copy(dst[initializedBytes:], authority[:])
	binary.LittleEndian.PutUint64(dst[initializedBytes+authorityBytes:], capacity)
	binary.LittleEndian.PutUint32(dst[initializedBytes+authorityBytes+capacityBytes:], count)
}

// UnpackShard decodes a shard account buffer. An uninitialized account must
// carry a zeroed header; an initialized account's buffer length must equal
// the static size computed from its embedded capacity. Any other shape fails
// with ErrInvalidAccountData.
func UnpackShard(data []byte) (*RegistryShard, error) {
	h, err := unpackHeader(data)
	if err != nil {
		return nil, err
	}

	if !h.initialized {
		if !h.authority.IsZero() || h.capacity != 0 || h.count != 0 {
			return nil, ErrInvalidAccountData
		}
		return &RegistryShard{}, nil
	}

	if h.capacity == 0 || h.capacity > MaxShardCapacity {
		return nil, ErrInvalidAccountData
	}
	if len(data) != ShardAccountSize(h.capacity) {
		return nil, ErrInvalidAccountData
	}
	if uint64(h.count) > h.capacity {
		return nil, ErrInvalidAccountData
	}

	shard := &RegistryShard{
		Initialized: true,
		Authority:   h.authority,
		MaxCapacity: h.capacity,
		Members:     make([]Member, h.count),
	}

	offset := headerSize
	for i := range shard.Members {
		copy(shard.Members[i].Identity[:], data[offset:offset+interfaces.IdentityLen])
		shard.Members[i].Allocation = binary.LittleEndian.Uint64(data[offset+interfaces.IdentityLen:])
		offset += memberEntryBytes
	}

	return shard, nil
}

// Pack serializes the shard into dst, which must be exactly
// ShardAccountSize(MaxCapacity) bytes. Unused entry space is zeroed so the
// persisted buffer is fully deterministic.
func (s *RegistryShard) Pack(dst []byte) error {
	if s.MaxCapacity == 0 || s.MaxCapacity > MaxShardCapacity {
		return ErrInvalidAccountData
	}
	if len(dst) != ShardAccountSize(s.MaxCapacity) {
		return ErrInvalidAccountData
	}
	if uint64(len(s.Members)) > s.MaxCapacity {
		return ErrInvalidAccountData
	}

	packHeader(dst, s.Initialized, s.Authority, s.MaxCapacity, uint32(len(s.Members)))

	offset := headerSize
	for _, m := range s.Members {
		copy(dst[offset:], m.Identity[:])
		binary.LittleEndian.PutUint64(dst[offset+interfaces.IdentityLen:], m.Allocation)
		offset += memberEntryBytes
	}
	clear(dst[offset:])
	return nil
}

// Contains reports whether the identity is in the member set.
func (s *RegistryShard) Contains(id interfaces.Identity) bool {
	for _, m := range s.Members {
		if m.Identity.Equal(id) {
			return true
		}
	}
	return false
}

// AllocationOf returns the allocation stored for an identity.
func (s *RegistryShard) AllocationOf(id interfaces.Identity) (uint64, bool) {
	for _, m := range s.Members {
		if m.Identity.Equal(id) {
			return m.Allocation, true
		}
	}
	return 0, false
}

// Add appends a member, enforcing the capacity bound and per-shard
// uniqueness.
func (s *RegistryShard) Add(id interfaces.Identity, allocation uint64) error {
	if s.Contains(id) {
		return ErrDuplicateEntry
	}
	if uint64(len(s.Members)) >= s.MaxCapacity {
		return ErrCapacityExceeded
	}
	s.Members = append(s.Members, Member{Identity: id, Allocation: allocation})
	return nil
}

// Remove deletes the entry for an identity, preserving the order of the
// remaining members.
func (s *RegistryShard) Remove(id interfaces.Identity) error {
	for i, m := range s.Members {
		if m.Identity.Equal(id) {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

// Free returns the number of member slots still available.
func (s *RegistryShard) Free() uint64 {
	return s.MaxCapacity - uint64(len(s.Members))
}
