package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/tokengate/token-allowlist-backend/interfaces"
)

// SystemProgramID is the distinguished identity handling account creation
// and balance transfers. It is the all-zero identity; no keypair can sign
// for it.
var SystemProgramID = interfaces.Identity{}

const (
	sysOpCreateAccount byte = 0
	sysOpTransfer      byte = 1
)

// CreateAccountInstruction builds a system instruction that allocates a new
// account with the given data space and moves funding from the funder to the
// new account. The new account must co-sign its own creation.
//
// Bundling this with a registry Init in one transaction satisfies the
// requirement that allocation, funding, and initialization land atomically.
func CreateAccountInstruction(funder, newAccount interfaces.Identity, space, funding uint64) Instruction {
	data := make([]byte, 17)
	data[0] = sysOpCreateAccount
	binary.LittleEndian.PutUint64(data[1:], space)
	binary.LittleEndian.PutUint64(data[9:], funding)
	return Instruction{
		Program: SystemProgramID,
		Accounts: []AccountMeta{
			{Key: funder, Signer: true, Writable: true},
			{Key: newAccount, Signer: true, Writable: true},
		},
		Data: data,
	}
}

// TransferInstruction builds a system instruction moving balance between two
// accounts.
func TransferInstruction(from, to interfaces.Identity, amount uint64) Instruction {
	data := make([]byte, 9)
	data[0] = sysOpTransfer
	binary.LittleEndian.PutUint64(data[1:], amount)
	return Instruction{
		Program: SystemProgramID,
		Accounts: []AccountMeta{
			{Key: from, Signer: true, Writable: true},
			{Key: to, Writable: true},
		},
		Data: data,
	}
}

// applySystem executes a system instruction. The caller holds the ledger
// lock and has already verified signer signatures.
func (l *Ledger) applySystem(ix Instruction) error {
	if len(ix.Data) == 0 {
		return ErrInvalidSystemInstruction
	}

	switch ix.Data[0] {
	case sysOpCreateAccount:
		if len(ix.Data) != 17 || len(ix.Accounts) != 2 {
			return ErrInvalidSystemInstruction
		}
		space := binary.LittleEndian.Uint64(ix.Data[1:])
		funding := binary.LittleEndian.Uint64(ix.Data[9:])
		return l.createAccount(ix.Accounts[0].Key, ix.Accounts[1].Key, space, funding)

	case sysOpTransfer:
		if len(ix.Data) != 9 || len(ix.Accounts) != 2 {
			return ErrInvalidSystemInstruction
		}
		amount := binary.LittleEndian.Uint64(ix.Data[1:])
		return l.transfer(ix.Accounts[0].Key, ix.Accounts[1].Key, amount)

	default:
		return ErrInvalidSystemInstruction
	}
}

func (l *Ledger) createAccount(funder, key interfaces.Identity, space, funding uint64) error {
	from, ok := l.accounts[funder]
	if !ok {
		return fmt.Errorf("%w: funder %s", ErrAccountNotFound, funder)
	}
	if from.balance < funding {
		return ErrInsufficientFunds
	}
	if existing, ok := l.accounts[key]; ok && (existing.balance != 0 || len(existing.data) != 0) {
		return fmt.Errorf("%w: %s", ErrAccountExists, key)
	}
	if space > maxAccountDataLen {
		return ErrInvalidSystemInstruction
	}

	from.balance -= funding
	l.accounts[key] = &account{balance: funding, data: make([]byte, space)}
	return nil
}

func (l *Ledger) transfer(fromKey, toKey interfaces.Identity, amount uint64) error {
	from, ok := l.accounts[fromKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, fromKey)
	}
	if from.balance < amount {
		return ErrInsufficientFunds
	}

	to, ok := l.accounts[toKey]
	if !ok {
		to = &account{}
		l.accounts[toKey] = to
	}

	from.balance -= amount
	to.balance += amount
	return nil
}
