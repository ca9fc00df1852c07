package program

import (
	"github.com/tokengate/token-allowlist-backend/interfaces"
)

// MaxMapShards is the largest shard-reference count a map account may be
// created with. Like MaxShardCapacity it bounds the cost of one pack/unpack
// cycle, and it keeps the size arithmetic below well inside int range so an
// embedded capacity can never wrap the exact-size check.
const MaxMapShards = 1024

// MapAccountSize returns the exact account buffer size for a registry map
// holding up to maxShards shard references. Only defined for
// maxShards <= MaxMapShards; every decode and init path enforces the bound
// before calling this.
func MapAccountSize(maxShards uint64) int {
	return headerSize + shardRefBytes*int(maxShards)
}

// RegistryMap is the typed state of the shard index account, used when the
// sharding scheme is active. It holds ordered references to shard accounts.
//
// Registering a reference does not verify that the referenced shard account
// is itself initialized; that check happens on the first per-shard operation
// issued against it. Callers registering a shard before initializing it will
// see NotInitialized from that later operation, not from RegisterShard.
type RegistryMap struct {
	Initialized bool
	Authority   interfaces.Identity
	MaxShards   uint64
	ShardRefs   []interfaces.Identity
}

// UnpackMap decodes a registry map account buffer with the same shape rules
// as UnpackShard: zeroed header before init, exact static size after.
func UnpackMap(data []byte) (*RegistryMap, error) {
	h, err := unpackHeader(data)
	if err != nil {
		return nil, err
	}

	if !h.initialized {
		if !h.authority.IsZero() || h.capacity != 0 || h.count != 0 {
			return nil, ErrInvalidAccountData
		}
		return &RegistryMap{}, nil
	}

	if h.capacity == 0 || h.capacity > MaxMapShards {
		return nil, ErrInvalidAccountData
	}
	if len(data) != MapAccountSize(h.capacity) {
		return nil, ErrInvalidAccountData
	}
	if uint64(h.count) > h.capacity {
		return nil, ErrInvalidAccountData
	}

	m := &RegistryMap{
		Initialized: true,
		Authority:   h.authority,
		MaxShards:   h.capacity,
		ShardRefs:   make([]interfaces.Identity, h.count),
	}

	offset := headerSize
	for i := range m.ShardRefs {
		copy(m.ShardRefs[i][:], data[offset:offset+shardRefBytes])
		offset += shardRefBytes
	}

	return m, nil
}

// Pack serializes the map into dst, which must be exactly
// MapAccountSize(MaxShards) bytes.
func (m *RegistryMap) Pack(dst []byte) error {
	if m.MaxShards == 0 || m.MaxShards > MaxMapShards {
		return ErrInvalidAccountData
	}
	if len(dst) != MapAccountSize(m.MaxShards) {
		return ErrInvalidAccountData
	}
	if uint64(len(m.ShardRefs)) > m.MaxShards {
		return ErrInvalidAccountData
	}

	packHeader(dst, m.Initialized, m.Authority, m.MaxShards, uint32(len(m.ShardRefs)))

	offset := headerSize
	for _, ref := range m.ShardRefs {
		copy(dst[offset:], ref[:])
		offset += shardRefBytes
	}
	clear(dst[offset:])
	return nil
}

// Contains reports whether a shard reference is already listed.
func (m *RegistryMap) Contains(ref interfaces.Identity) bool {
	for _, existing := range m.ShardRefs {
		if existing.Equal(ref) {
			return true
		}
	}
	return false
}

// Register appends a shard reference, enforcing the shard limit and
// reference uniqueness.
func (m *RegistryMap) Register(ref interfaces.Identity) error {
	if m.Contains(ref) {
		return ErrDuplicateEntry
	}
	if uint64(len(m.ShardRefs)) >= m.MaxShards {
		return ErrCapacityExceeded
	}
	m.ShardRefs = append(m.ShardRefs, ref)
	return nil
}
