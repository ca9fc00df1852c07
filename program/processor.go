package program

import (
	"encoding/binary"
	"log/slog"
	"math"

	"github.com/tokengate/token-allowlist-backend/interfaces"
)

// Account is the mutable view of one ledger account handed to Process. The
// host presents the accounts a call declared, in the order the instruction
// protocol requires, and persists Balance and Data only if Process returns
// nil.
type Account struct {
	Key     interfaces.Identity
	Signer  bool
	Balance uint64
	Data    []byte
}

// Every operation names its accounts in a fixed order.
const (
	idxAuthority = 0
	idxTarget    = 1
	idxSubject   = 2 // rent sysvar, identity to add/remove, or close destination
	accountCount = 3
)

// Processor routes decoded instructions to the registry operations. It holds
// no state of its own; all state lives in the account buffers.
type Processor struct {
	log *slog.Logger
}

// NewProcessor creates a processor logging to the given logger.
func NewProcessor(log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{log: log}
}

// Process decodes the instruction payload and applies the matching operation
// to the supplied accounts. Checks run strictly before mutation: on any
// error the account buffers are untouched.
func (p *Processor) Process(accounts []*Account, instructionData []byte) error {
	op, payload, err := parseInstruction(instructionData)
	if err != nil {
		return err
	}
	if len(accounts) < accountCount {
		return ErrInvalidInstructionData
	}

	p.log.Debug("processing registry instruction", slog.String("op", op.String()))

	switch op {
	case OpInit:
		return p.processInit(accounts, payload)
	case OpAdd:
		return p.processAdd(accounts, payload)
	case OpRemove:
		return p.processRemove(accounts)
	case OpClose:
		return p.processClose(accounts)
	default:
		return ErrInvalidInstructionData
	}
}

// checkAuthority is the single authority validation step invoked before
// every state transition: the authority account must be a transaction signer
// and must match the identity recorded at initialization.
func checkAuthority(authority *Account, expected interfaces.Identity) error {
	if !authority.Signer {
		return ErrUnauthorized
	}
	if !authority.Key.Equal(expected) {
		return ErrUnauthorized
	}
	return nil
}

// processInit initializes either a shard or a map account. The two record
// kinds share opcode 0 and are told apart by the target buffer's static
// size: shard entries are 40 bytes, map entries 32, so for any nonzero
// capacity exactly one layout can match.
func (p *Processor) processInit(accounts []*Account, payload []byte) error {
	authority := accounts[idxAuthority]
	target := accounts[idxTarget]
	rentSysvar := accounts[idxSubject]

	if !authority.Signer {
		return ErrUnauthorized
	}

	capacity := leUint64(payload)
	if capacity == 0 {
		return ErrInvalidInstructionData
	}

	if !rentSysvar.Key.Equal(RentSysvarID) {
		return ErrInvalidAccountData
	}
	rent, err := UnpackRent(rentSysvar.Data)
	if err != nil {
		return err
	}
	if !rent.IsExempt(target.Balance, len(target.Data)) {
		p.log.Debug("registry account must be rent exempt",
			slog.String("account", target.Key.String()),
			slog.Uint64("balance", target.Balance))
		return ErrNotRentExempt
	}

	header, err := unpackHeader(target.Data)
	if err != nil {
		return err
	}
	if header.initialized {
		return ErrAlreadyInitialized
	}

	switch len(target.Data) {
	case ShardAccountSize(capacity):
		if capacity > MaxShardCapacity {
			return ErrInvalidInstructionData
		}
		shard := &RegistryShard{
			Initialized: true,
			Authority:   authority.Key,
			MaxCapacity: capacity,
		}
		return shard.Pack(target.Data)

	case MapAccountSize(capacity):
		if capacity > MaxMapShards {
			return ErrInvalidInstructionData
		}
		m := &RegistryMap{
			Initialized: true,
			Authority:   authority.Key,
			MaxShards:   capacity,
		}
		return m.Pack(target.Data)

	default:
		return ErrInvalidAccountData
	}
}

// processAdd handles opcode 1 in both modes: an 8-byte payload carries the
// allocation for a shard member add; an empty payload registers the subject
// as a shard reference in a map account.
func (p *Processor) processAdd(accounts []*Account, payload []byte) error {
	authority := accounts[idxAuthority]
	target := accounts[idxTarget]
	subject := accounts[idxSubject]

	if len(payload) == 8 {
		shard, err := UnpackShard(target.Data)
		if err != nil {
			return err
		}
		if !shard.Initialized {
			return ErrNotInitialized
		}
		if err := checkAuthority(authority, shard.Authority); err != nil {
			return err
		}
		if err := shard.Add(subject.Key, leUint64(payload)); err != nil {
			return err
		}
		return shard.Pack(target.Data)
	}

	m, err := UnpackMap(target.Data)
	if err != nil {
		return err
	}
	if !m.Initialized {
		return ErrNotInitialized
	}
	if err := checkAuthority(authority, m.Authority); err != nil {
		return err
	}
	// The referenced shard's own initialization is not verified here; the
	// first per-shard operation against it performs that check.
	if err := m.Register(subject.Key); err != nil {
		return err
	}
	return m.Pack(target.Data)
}

func (p *Processor) processRemove(accounts []*Account) error {
	authority := accounts[idxAuthority]
	target := accounts[idxTarget]
	subject := accounts[idxSubject]

	shard, err := UnpackShard(target.Data)
	if err != nil {
		return err
	}
	if !shard.Initialized {
		return ErrNotInitialized
	}
	if err := checkAuthority(authority, shard.Authority); err != nil {
		return err
	}
	if err := shard.Remove(subject.Key); err != nil {
		return err
	}
	return shard.Pack(target.Data)
}

// processClose transfers the target's entire backing balance to the
// destination and zeroes the buffer. Only the header is decoded, so Close
// works for both record kinds. After close the zeroed buffer reads as
// uninitialized and every later operation fails with NotInitialized.
func (p *Processor) processClose(accounts []*Account) error {
	authority := accounts[idxAuthority]
	target := accounts[idxTarget]
	destination := accounts[idxSubject]

	header, err := unpackHeader(target.Data)
	if err != nil {
		return err
	}
	if !header.initialized {
		return ErrNotInitialized
	}
	if err := checkAuthority(authority, header.authority); err != nil {
		return err
	}

	if destination.Balance > math.MaxUint64-target.Balance {
		return ErrOverflow
	}
	destination.Balance += target.Balance
	target.Balance = 0
	clear(target.Data)

	return nil
}

func leUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}
