package program

import (
	"encoding/binary"
)

// Opcode is the one-byte instruction discriminant.
type Opcode byte

const (
	// OpInit initializes a shard or map account. Payload: 8-byte capacity.
	// Accounts: [authority (signer), target, rent sysvar].
	OpInit Opcode = 0

	// OpAdd adds a member to a shard (8-byte allocation payload) or registers
	// a shard reference in a map (empty payload).
	// Accounts: [authority (signer), target, identity to add].
	OpAdd Opcode = 1

	// OpRemove removes a member from a shard. No payload.
	// Accounts: [authority (signer), target, identity to remove].
	OpRemove Opcode = 2

	// Discriminant 3 is reserved and explicitly rejected.

	// OpClose closes a shard account, transferring its backing balance. No
	// payload. Accounts: [authority (signer), target, destination].
	OpClose Opcode = 4
)

func (op Opcode) String() string {
	switch op {
	case OpInit:
		return "init"
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpClose:
		return "close"
	default:
		return "unknown"
	}
}

// InitInstructionData encodes the Init payload for the given capacity.
func InitInstructionData(capacity uint64) []byte {
	data := make([]byte, 9)
	data[0] = byte(OpInit)
	binary.LittleEndian.PutUint64(data[1:], capacity)
	return data
}

// AddMemberInstructionData encodes the shard-mode Add payload.
func AddMemberInstructionData(allocation uint64) []byte {
	data := make([]byte, 9)
	data[0] = byte(OpAdd)
	binary.LittleEndian.PutUint64(data[1:], allocation)
	return data
}

// RegisterShardInstructionData encodes the map-mode Add payload.
func RegisterShardInstructionData() []byte {
	return []byte{byte(OpAdd)}
}

// RemoveMemberInstructionData encodes the Remove payload.
func RemoveMemberInstructionData() []byte {
	return []byte{byte(OpRemove)}
}

// CloseInstructionData encodes the Close payload.
func CloseInstructionData() []byte {
	return []byte{byte(OpClose)}
}

// parseInstruction splits an instruction buffer into its opcode and trailing
// payload, rejecting unknown discriminants and malformed trailing data before
// any account state is touched.
func parseInstruction(data []byte) (Opcode, []byte, error) {
	if len(data) == 0 {
		return 0, nil, ErrInvalidInstructionData
	}

	op := Opcode(data[0])
	rest := data[1:]

	switch op {
	case OpInit:
		if len(rest) != 8 {
			return 0, nil, ErrInvalidInstructionData
		}
	case OpAdd:
		// 8-byte allocation in shard mode, empty in map mode.
		if len(rest) != 0 && len(rest) != 8 {
			return 0, nil, ErrInvalidInstructionData
		}
	case OpRemove, OpClose:
		if len(rest) != 0 {
			return 0, nil, ErrInvalidInstructionData
		}
	default:
		return 0, nil, ErrInvalidInstructionData
	}

	return op, rest, nil
}
