// Package program implements the account-resident registry state machine
// that gates participation in a token distribution event.
//
// The registry is a fixed-capacity, binary-encoded allow-list of participant
// identities, each with an allocation cap. State lives entirely in account
// byte buffers; this package provides the codec between those buffers and
// typed records, the instruction protocol that mutates them, and the
// authority rules enforced on every mutation.
//
// # Account layout
//
// Both record kinds share a 45-byte little-endian header:
//
//	initialized   1 byte
//	authority     32 bytes
//	capacity      8 bytes
//	entry count   4 bytes
//
// A shard account follows the header with 40-byte member entries (32-byte
// identity, 8-byte allocation). A map account follows it with 32-byte shard
// references. Buffers are allocated to the exact layout size at creation and
// never resized.
//
// # Sharding
//
// A single shard holds at most MaxShardCapacity members, keeping the cost of
// one pack/unpack cycle under the host's fixed per-call processing budget.
// Larger allow-lists are split across independent shard accounts indexed by
// a RegistryMap account.
//
// # Instruction protocol
//
// Instructions are a one-byte discriminant followed by an operation-specific
// payload:
//
//	0  Init    8-byte capacity       [authority, target, rent sysvar]
//	1  Add     8-byte allocation or  [authority, target, identity]
//	           empty (map register)
//	2  Remove  empty                 [authority, target, identity]
//	4  Close   empty                 [authority, target, destination]
//
// Discriminant 3 is reserved and rejected. The first account of every
// mutating call must be a signer matching the authority recorded at Init.
//
// Processing is all-or-nothing per call: every precondition is checked
// before the buffer is rewritten, so a failed call leaves the account
// byte-for-byte unchanged.
package program
