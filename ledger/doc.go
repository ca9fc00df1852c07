// Package ledger is the in-process execution host for the registry program.
//
// It owns the account set and exposes the submit contract the client layer
// depends on: a transaction is an ordered instruction batch plus Ed25519
// signatures over its canonical message encoding. The ledger verifies a
// valid signature for every declared signer, executes instructions in
// order, and commits all touched accounts or none of them.
//
// Two programs are routed: the all-zero system program for account creation
// and balance transfers, and the registry program for allow-list mutations.
// Account creation carries the data space and funding in one instruction so
// that allocation, funding, and registry initialization can land in a single
// atomic batch.
//
// The host guarantees serializability per account, so a single ledger lock
// is held across each transaction and programs run without internal
// synchronization. Full ledger state can be exported as a deterministic,
// content-addressable snapshot and restored from one.
package ledger
