package ledger

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/tokengate/token-allowlist-backend/interfaces"
)

// AccountMeta declares one account a call will touch and how.
type AccountMeta struct {
	Key      interfaces.Identity
	Signer   bool
	Writable bool
}

// Instruction is one call into a program: the program's identity, the
// accounts the call declares, in protocol order, and the opcode-tagged
// payload.
type Instruction struct {
	Program  interfaces.Identity
	Accounts []AccountMeta
	Data     []byte
}

// Signature is an Ed25519 signature by one declared signer over the
// transaction message.
type Signature struct {
	Signer    interfaces.Identity
	Signature [ed25519.SignatureSize]byte
}

// Transaction is an ordered instruction batch executed atomically: either
// every instruction succeeds and all touched accounts are rewritten, or the
// whole batch is rolled back.
type Transaction struct {
	Instructions []Instruction
	Signatures   []Signature
}

// TxID identifies a submitted transaction: the SHA-256 of its canonical
// message encoding.
type TxID [32]byte

// String returns the hex representation of the transaction ID.
func (id TxID) String() string {
	return hex.EncodeToString(id[:])
}

// NewTransaction creates an unsigned transaction from an instruction list.
func NewTransaction(instructions ...Instruction) *Transaction {
	return &Transaction{Instructions: instructions}
}

// Message returns the canonical byte encoding of the instruction list. This
// is the payload signers sign and the ledger verifies; it is deterministic
// for a given instruction list.
func (tx *Transaction) Message() []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Instructions)))
	for _, ix := range tx.Instructions {
		buf = append(buf, ix.Program[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ix.Accounts)))
		for _, meta := range ix.Accounts {
			buf = append(buf, meta.Key[:]...)
			var flags byte
			if meta.Signer {
				flags |= 1
			}
			if meta.Writable {
				flags |= 2
			}
			buf = append(buf, flags)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ix.Data)))
		buf = append(buf, ix.Data...)
	}
	return buf
}

// ID returns the transaction identifier.
func (tx *Transaction) ID() TxID {
	return TxID(sha256.Sum256(tx.Message()))
}

// Sign appends a signature over the transaction message with the given
// private key. The signer identity is the key's Ed25519 public key.
func (tx *Transaction) Sign(priv ed25519.PrivateKey) error {
	pub, err := interfaces.NewIdentityFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}

	sig := Signature{Signer: pub}
	copy(sig.Signature[:], ed25519.Sign(priv, tx.Message()))
	tx.Signatures = append(tx.Signatures, sig)
	return nil
}

// signedBy reports whether the transaction carries a valid signature from
// the identity over the given message.
func (tx *Transaction) signedBy(message []byte, id interfaces.Identity) bool {
	for _, sig := range tx.Signatures {
		if !sig.Signer.Equal(id) {
			continue
		}
		if ed25519.Verify(ed25519.PublicKey(id.Bytes()), message, sig.Signature[:]) {
			return true
		}
	}
	return false
}
