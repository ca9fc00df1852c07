package program

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokengate/token-allowlist-backend/interfaces"
)

func testProcessor() *Processor {
	return NewProcessor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func rentSysvarAccount() *Account {
	return &Account{Key: RentSysvarID, Data: DefaultRent.Pack()}
}

// newShardAccount returns a funded, zeroed account sized for the capacity.
func newShardAccount(key interfaces.Identity, capacity uint64) *Account {
	size := ShardAccountSize(capacity)
	return &Account{
		Key:     key,
		Balance: DefaultRent.MinimumBalance(size),
		Data:    make([]byte, size),
	}
}

func newMapAccount(key interfaces.Identity, maxShards uint64) *Account {
	size := MapAccountSize(maxShards)
	return &Account{
		Key:     key,
		Balance: DefaultRent.MinimumBalance(size),
		Data:    make([]byte, size),
	}
}

func initShard(t *testing.T, p *Processor, authority, target *Account, capacity uint64) {
	t.Helper()
	err := p.Process([]*Account{authority, target, rentSysvarAccount()}, InitInstructionData(capacity))
	require.NoError(t, err)
}

func TestProcessInitShard(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)

	initShard(t, p, authority, target, 10)

	shard, err := UnpackShard(target.Data)
	require.NoError(t, err)
	assert.True(t, shard.Initialized)
	assert.Equal(t, authority.Key, shard.Authority)
	assert.Equal(t, uint64(10), shard.MaxCapacity)
	assert.Empty(t, shard.Members)
}

func TestProcessInitRejectsSecondInit(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)

	initShard(t, p, authority, target, 10)
	err := p.Process([]*Account{authority, target, rentSysvarAccount()}, InitInstructionData(10))
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestProcessInitRequiresRentExemption(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)
	target.Balance-- // one unit short of the exemption minimum

	err := p.Process([]*Account{authority, target, rentSysvarAccount()}, InitInstructionData(10))
	assert.ErrorIs(t, err, ErrNotRentExempt)

	shard, err := UnpackShard(target.Data)
	require.NoError(t, err)
	assert.False(t, shard.Initialized)
}

func TestProcessInitRejectsMissingSigner(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: false}
	target := newShardAccount(testIdentity(0x01), 10)

	err := p.Process([]*Account{authority, target, rentSysvarAccount()}, InitInstructionData(10))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProcessInitRejectsWrongSysvar(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)
	bogus := &Account{Key: testIdentity(0x02), Data: DefaultRent.Pack()}

	err := p.Process([]*Account{authority, target, bogus}, InitInstructionData(10))
	assert.ErrorIs(t, err, ErrInvalidAccountData)
}

func TestProcessInitRejectsCapacityAboveBudget(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), MaxShardCapacity+1)

	err := p.Process([]*Account{authority, target, rentSysvarAccount()}, InitInstructionData(MaxShardCapacity+1))
	assert.ErrorIs(t, err, ErrInvalidInstructionData)
}

func TestProcessInitRejectsMismatchedBufferSize(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)

	err := p.Process([]*Account{authority, target, rentSysvarAccount()}, InitInstructionData(9))
	assert.ErrorIs(t, err, ErrInvalidAccountData)
}

func TestProcessInitMap(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newMapAccount(testIdentity(0x01), 16)

	err := p.Process([]*Account{authority, target, rentSysvarAccount()}, InitInstructionData(16))
	require.NoError(t, err)

	m, err := UnpackMap(target.Data)
	require.NoError(t, err)
	assert.True(t, m.Initialized)
	assert.Equal(t, uint64(16), m.MaxShards)
}

func TestProcessInitRejectsMapCapacityAboveLimit(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newMapAccount(testIdentity(0x01), MaxMapShards+1)

	err := p.Process([]*Account{authority, target, rentSysvarAccount()}, InitInstructionData(MaxMapShards+1))
	assert.ErrorIs(t, err, ErrInvalidInstructionData)
}

func TestProcessInitRejectsWrappedMapCapacity(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newMapAccount(testIdentity(0x01), 2)

	// MapAccountSize(2 + 1<<59) wraps back to the 2-shard buffer size.
	err := p.Process([]*Account{authority, target, rentSysvarAccount()}, InitInstructionData(2+1<<59))
	assert.ErrorIs(t, err, ErrInvalidInstructionData)

	m, err := UnpackMap(target.Data)
	require.NoError(t, err)
	assert.False(t, m.Initialized)
}

func TestProcessAddMember(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)
	member := &Account{Key: testIdentity(0x42)}
	initShard(t, p, authority, target, 10)

	err := p.Process([]*Account{authority, target, member}, AddMemberInstructionData(1000))
	require.NoError(t, err)

	shard, err := UnpackShard(target.Data)
	require.NoError(t, err)
	allocation, ok := shard.AllocationOf(member.Key)
	require.True(t, ok)
	assert.Equal(t, uint64(1000), allocation)
}

func TestProcessAddRequiresInit(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)
	member := &Account{Key: testIdentity(0x42)}

	err := p.Process([]*Account{authority, target, member}, AddMemberInstructionData(1000))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestProcessMutationsRequireAuthority(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)
	member := &Account{Key: testIdentity(0x42)}
	initShard(t, p, authority, target, 10)

	before := append([]byte(nil), target.Data...)

	intruder := &Account{Key: testIdentity(0xcc), Signer: true}
	unsigned := &Account{Key: testIdentity(0xaa), Signer: false}

	for name, signer := range map[string]*Account{"wrong identity": intruder, "missing signature": unsigned} {
		t.Run(name, func(t *testing.T) {
			err := p.Process([]*Account{signer, target, member}, AddMemberInstructionData(1000))
			assert.ErrorIs(t, err, ErrUnauthorized)
			err = p.Process([]*Account{signer, target, member}, RemoveMemberInstructionData())
			assert.ErrorIs(t, err, ErrUnauthorized)
			err = p.Process([]*Account{signer, target, member}, CloseInstructionData())
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Equal(t, before, target.Data, "failed calls must not mutate state")
		})
	}
}

func TestProcessCapacityBoundLeavesMembershipUnchanged(t *testing.T) {
	const capacity = 3
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), capacity)
	initShard(t, p, authority, target, capacity)

	for i := byte(0); i < capacity; i++ {
		member := &Account{Key: testIdentity(0x10 + i)}
		require.NoError(t, p.Process([]*Account{authority, target, member}, AddMemberInstructionData(100)))
	}

	before := append([]byte(nil), target.Data...)
	overflow := &Account{Key: testIdentity(0x99)}
	err := p.Process([]*Account{authority, target, overflow}, AddMemberInstructionData(100))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, before, target.Data)
}

func TestProcessRegisterShard(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newMapAccount(testIdentity(0x01), 4)
	require.NoError(t, p.Process([]*Account{authority, target, rentSysvarAccount()}, InitInstructionData(4)))

	// Registration does not require the referenced shard to be initialized.
	shardRef := &Account{Key: testIdentity(0x77)}
	require.NoError(t, p.Process([]*Account{authority, target, shardRef}, RegisterShardInstructionData()))

	err := p.Process([]*Account{authority, target, shardRef}, RegisterShardInstructionData())
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	m, err := UnpackMap(target.Data)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.Identity{shardRef.Key}, m.ShardRefs)
}

func TestProcessClose(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)
	destination := &Account{Key: testIdentity(0x02), Balance: 500}
	initShard(t, p, authority, target, 10)

	funded := target.Balance
	err := p.Process([]*Account{authority, target, destination}, CloseInstructionData())
	require.NoError(t, err)

	assert.Equal(t, uint64(0), target.Balance)
	assert.Equal(t, 500+funded, destination.Balance)
	for _, b := range target.Data {
		require.Zero(t, b)
	}
}

func TestProcessCloseIsTerminal(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)
	destination := &Account{Key: testIdentity(0x02)}
	member := &Account{Key: testIdentity(0x42)}
	initShard(t, p, authority, target, 10)

	require.NoError(t, p.Process([]*Account{authority, target, destination}, CloseInstructionData()))

	assert.ErrorIs(t, p.Process([]*Account{authority, target, destination}, CloseInstructionData()), ErrNotInitialized)
	assert.ErrorIs(t, p.Process([]*Account{authority, target, member}, AddMemberInstructionData(1)), ErrNotInitialized)
	assert.ErrorIs(t, p.Process([]*Account{authority, target, member}, RemoveMemberInstructionData()), ErrNotInitialized)
}

func TestProcessCloseOverflow(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)
	destination := &Account{Key: testIdentity(0x02), Balance: ^uint64(0)}
	initShard(t, p, authority, target, 10)

	err := p.Process([]*Account{authority, target, destination}, CloseInstructionData())
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, ^uint64(0), destination.Balance)
}

// TestProcessLifecycleScenario walks the whole shard lifecycle: init at the
// documented capacity bound, duplicate add rejection, removal, and removal
// of an absent identity.
func TestProcessLifecycleScenario(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), MaxShardCapacity)
	x := &Account{Key: testIdentity(0x58)}

	initShard(t, p, authority, target, MaxShardCapacity)

	require.NoError(t, p.Process([]*Account{authority, target, x}, AddMemberInstructionData(1000)))

	err := p.Process([]*Account{authority, target, x}, AddMemberInstructionData(1000))
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	require.NoError(t, p.Process([]*Account{authority, target, x}, RemoveMemberInstructionData()))
	shard, err := UnpackShard(target.Data)
	require.NoError(t, err)
	assert.Empty(t, shard.Members)

	err = p.Process([]*Account{authority, target, x}, RemoveMemberInstructionData())
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestProcessRejectsReservedDiscriminant(t *testing.T) {
	p := testProcessor()
	authority := &Account{Key: testIdentity(0xaa), Signer: true}
	target := newShardAccount(testIdentity(0x01), 10)
	initShard(t, p, authority, target, 10)

	before := append([]byte(nil), target.Data...)
	err := p.Process([]*Account{authority, target, &Account{}}, []byte{3})
	assert.ErrorIs(t, err, ErrInvalidInstructionData)
	assert.Equal(t, before, target.Data)
}

func TestErrorCode(t *testing.T) {
	code, ok := ErrorCode(ErrUnauthorized)
	require.True(t, ok)
	assert.Equal(t, uint32(4), code)

	_, ok = ErrorCode(io.EOF)
	assert.False(t, ok)
}
