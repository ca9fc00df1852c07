package program

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokengate/token-allowlist-backend/interfaces"
)

func testIdentity(b byte) interfaces.Identity {
	var id interfaces.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func TestShardPackUnpackRoundTrip(t *testing.T) {
	shard := &RegistryShard{
		Initialized: true,
		Authority:   testIdentity(0xaa),
		MaxCapacity: 5,
		Members: []Member{
			{Identity: testIdentity(1), Allocation: 1000},
			{Identity: testIdentity(2), Allocation: 0},
			{Identity: testIdentity(3), Allocation: ^uint64(0)},
		},
	}

	buf := make([]byte, ShardAccountSize(shard.MaxCapacity))
	require.NoError(t, shard.Pack(buf))

	decoded, err := UnpackShard(buf)
	require.NoError(t, err)
	assert.Equal(t, shard, decoded)
}

func TestShardPackDeterministic(t *testing.T) {
	shard := &RegistryShard{
		Initialized: true,
		Authority:   testIdentity(0xaa),
		MaxCapacity: 4,
		Members:     []Member{{Identity: testIdentity(1), Allocation: 7}},
	}

	a := make([]byte, ShardAccountSize(shard.MaxCapacity))
	b := make([]byte, ShardAccountSize(shard.MaxCapacity))
	// Dirty buffer must not leak into the packed output.
	for i := range b {
		b[i] = 0xff
	}

	require.NoError(t, shard.Pack(a))
	require.NoError(t, shard.Pack(b))
	assert.Equal(t, a, b)
}

func TestUnpackShardUninitialized(t *testing.T) {
	buf := make([]byte, ShardAccountSize(10))
	shard, err := UnpackShard(buf)
	require.NoError(t, err)
	assert.False(t, shard.Initialized)
	assert.Empty(t, shard.Members)
}

func TestUnpackShardRejectsMalformedBuffers(t *testing.T) {
	valid := &RegistryShard{
		Initialized: true,
		Authority:   testIdentity(0xaa),
		MaxCapacity: 3,
		Members:     []Member{{Identity: testIdentity(1), Allocation: 42}},
	}
	buf := make([]byte, ShardAccountSize(valid.MaxCapacity))
	require.NoError(t, valid.Pack(buf))

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func(b []byte) []byte { return nil }},
		{"short header", func(b []byte) []byte { return b[:headerSize-1] }},
		{"truncated entries", func(b []byte) []byte { return b[:len(b)-1] }},
		{"oversized buffer", func(b []byte) []byte { return append(b, 0) }},
		{"bad initialized byte", func(b []byte) []byte { b[0] = 2; return b }},
		{"count above capacity", func(b []byte) []byte { b[41] = 200; return b }},
		{"uninitialized with stale header", func(b []byte) []byte { b[0] = 0; return b }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mutated := tc.mutate(append([]byte(nil), buf...))
			_, err := UnpackShard(mutated)
			assert.ErrorIs(t, err, ErrInvalidAccountData)
		})
	}
}

func TestShardAddEnforcesCapacity(t *testing.T) {
	const capacity = 4
	shard := &RegistryShard{Initialized: true, Authority: testIdentity(0xaa), MaxCapacity: capacity}

	for i := byte(0); i < capacity; i++ {
		require.NoError(t, shard.Add(testIdentity(i+1), uint64(i)*100))
	}

	err := shard.Add(testIdentity(capacity+1), 500)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Len(t, shard.Members, capacity)
}

func TestShardAddRejectsDuplicates(t *testing.T) {
	shard := &RegistryShard{Initialized: true, Authority: testIdentity(0xaa), MaxCapacity: 10}
	require.NoError(t, shard.Add(testIdentity(1), 1000))

	err := shard.Add(testIdentity(1), 2000)
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	require.Len(t, shard.Members, 1)
	assert.Equal(t, uint64(1000), shard.Members[0].Allocation)
}

func TestShardRemovePreservesOrder(t *testing.T) {
	shard := &RegistryShard{Initialized: true, Authority: testIdentity(0xaa), MaxCapacity: 10}
	for i := byte(1); i <= 5; i++ {
		require.NoError(t, shard.Add(testIdentity(i), uint64(i)))
	}

	require.NoError(t, shard.Remove(testIdentity(3)))
	require.Len(t, shard.Members, 4)
	for i, want := range []byte{1, 2, 4, 5} {
		assert.Equal(t, testIdentity(want), shard.Members[i].Identity)
	}

	err := shard.Remove(testIdentity(3))
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestShardAccountSize(t *testing.T) {
	// 1 + 32 + 8 + 4 + 40 per entry.
	assert.Equal(t, 45, ShardAccountSize(0))
	assert.Equal(t, 85, ShardAccountSize(1))
	assert.Equal(t, 2045, ShardAccountSize(MaxShardCapacity))
}

func TestMapPackUnpackRoundTrip(t *testing.T) {
	m := &RegistryMap{
		Initialized: true,
		Authority:   testIdentity(0xbb),
		MaxShards:   8,
		ShardRefs:   []interfaces.Identity{testIdentity(1), testIdentity(2)},
	}

	buf := make([]byte, MapAccountSize(m.MaxShards))
	require.NoError(t, m.Pack(buf))

	decoded, err := UnpackMap(buf)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestMapRegister(t *testing.T) {
	m := &RegistryMap{Initialized: true, Authority: testIdentity(0xbb), MaxShards: 2}

	require.NoError(t, m.Register(testIdentity(1)))
	assert.ErrorIs(t, m.Register(testIdentity(1)), ErrDuplicateEntry)
	require.NoError(t, m.Register(testIdentity(2)))
	assert.ErrorIs(t, m.Register(testIdentity(3)), ErrCapacityExceeded)
	assert.Equal(t, []interfaces.Identity{testIdentity(1), testIdentity(2)}, m.ShardRefs)
}

func TestUnpackMapRejectsMalformedBuffers(t *testing.T) {
	valid := &RegistryMap{
		Initialized: true,
		Authority:   testIdentity(0xbb),
		MaxShards:   2,
		ShardRefs:   []interfaces.Identity{testIdentity(1)},
	}
	buf := make([]byte, MapAccountSize(valid.MaxShards))
	require.NoError(t, valid.Pack(buf))

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func(b []byte) []byte { return nil }},
		{"short header", func(b []byte) []byte { return b[:headerSize-1] }},
		{"truncated entries", func(b []byte) []byte { return b[:len(b)-1] }},
		{"oversized buffer", func(b []byte) []byte { return append(b, 0) }},
		{"bad initialized byte", func(b []byte) []byte { b[0] = 2; return b }},
		{"count above capacity", func(b []byte) []byte { b[41] = 200; return b }},
		{"capacity above limit", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[33:], MaxMapShards+1)
			return b
		}},
		// 32*(2+1<<59) wraps mod 2^64 back to the 2-entry size, so only the
		// capacity bound stands between count and out-of-range entry reads.
		{"wrapped capacity", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[33:], 2+1<<59)
			b[41] = 3
			return b
		}},
		{"uninitialized with stale header", func(b []byte) []byte { b[0] = 0; return b }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mutated := tc.mutate(append([]byte(nil), buf...))
			_, err := UnpackMap(mutated)
			assert.ErrorIs(t, err, ErrInvalidAccountData)
		})
	}
}

func TestMapPackRejectsShardLimitViolations(t *testing.T) {
	m := &RegistryMap{Initialized: true, Authority: testIdentity(0xbb), MaxShards: MaxMapShards + 1}
	buf := make([]byte, MapAccountSize(2))
	assert.ErrorIs(t, m.Pack(buf), ErrInvalidAccountData)
}

func TestMapAccountSize(t *testing.T) {
	assert.Equal(t, 45, MapAccountSize(0))
	assert.Equal(t, 45+32*16, MapAccountSize(16))
}
