package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/tokengate/token-allowlist-backend/interfaces"
)

// snapshotVersion tags the snapshot wire format.
const snapshotVersion byte = 1

// ErrInvalidSnapshot is returned when snapshot data cannot be decoded.
var ErrInvalidSnapshot = errors.New("invalid snapshot data")

// EncodeSnapshot serializes the full account set deterministically: version,
// slot, account count, then accounts sorted by identity. Identical ledger
// state always encodes to identical bytes, so snapshots are
// content-addressable.
func (l *Ledger) EncodeSnapshot() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]interfaces.Identity, 0, len(l.accounts))
	for key := range l.accounts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})

	var buf []byte
	buf = append(buf, snapshotVersion)
	buf = binary.LittleEndian.AppendUint64(buf, l.slot.Load())
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(keys)))
	for _, key := range keys {
		acc := l.accounts[key]
		buf = append(buf, key[:]...)
		buf = binary.LittleEndian.AppendUint64(buf, acc.balance)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(acc.data)))
		buf = append(buf, acc.data...)
	}
	return buf
}

// RestoreSnapshot replaces the ledger's entire account set and slot with the
// decoded snapshot. The current state is kept untouched on decode failure.
func (l *Ledger) RestoreSnapshot(data []byte) error {
	if len(data) < 13 || data[0] != snapshotVersion {
		return ErrInvalidSnapshot
	}
	slot := binary.LittleEndian.Uint64(data[1:])
	count := binary.LittleEndian.Uint32(data[9:])
	offset := 13

	accounts := make(map[interfaces.Identity]*account, count)
	for i := uint32(0); i < count; i++ {
		if len(data) < offset+interfaces.IdentityLen+12 {
			return fmt.Errorf("%w: truncated account %d", ErrInvalidSnapshot, i)
		}
		var key interfaces.Identity
		copy(key[:], data[offset:])
		offset += interfaces.IdentityLen

		balance := binary.LittleEndian.Uint64(data[offset:])
		offset += 8
		dataLen := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4

		if dataLen > maxAccountDataLen || len(data) < offset+dataLen {
			return fmt.Errorf("%w: truncated account %d data", ErrInvalidSnapshot, i)
		}
		accounts[key] = &account{
			balance: balance,
			data:    append([]byte(nil), data[offset:offset+dataLen]...),
		}
		offset += dataLen
	}
	if offset != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidSnapshot, len(data)-offset)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = accounts
	l.slot.Store(slot)
	return nil
}
