// Package api defines the JSON request and response types shared by the
// allowlist HTTP handlers and their clients. Identities and IDs travel as
// hex strings on the wire.
package api

// AddMemberRequest lists an identity with a token allocation.
type AddMemberRequest struct {
	// Identity is the hex-encoded 32-byte member identity.
	Identity string `json:"identity"`

	// Allocation is the token amount granted to the member.
	Allocation uint64 `json:"allocation"`
}

// CreateShardRequest creates and registers a new shard.
type CreateShardRequest struct {
	// Capacity is the maximum member count for the new shard, 1 to 50.
	Capacity uint64 `json:"capacity"`
}

// CreateShardResponse returns the identity of a newly registered shard.
type CreateShardResponse struct {
	Shard string `json:"shard"`
}

// CloseRequest tears down a registry account and sends its balance away.
type CloseRequest struct {
	// Target is the hex-encoded shard or registry map account to close.
	Target string `json:"target"`

	// Destination is the hex-encoded account receiving the balance.
	Destination string `json:"destination"`
}

// TxResponse reports the transaction that applied a mutation.
type TxResponse struct {
	TxID string `json:"tx_id"`
}

// SnapshotResponse describes a published ledger snapshot.
type SnapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
	ManifestID string `json:"manifest_id"`
	Slot       uint64 `json:"slot"`
}

// MemberStatusResponse answers a single allowlist lookup.
type MemberStatusResponse struct {
	Identity   string `json:"identity"`
	Listed     bool   `json:"listed"`
	Allocation uint64 `json:"allocation,omitempty"`
}

// MemberInfo is one listed member in a registry dump.
type MemberInfo struct {
	Identity   string `json:"identity"`
	Allocation uint64 `json:"allocation"`
	Shard      string `json:"shard"`
}

// MembersResponse lists every member across all registered shards.
type MembersResponse struct {
	Registry string       `json:"registry"`
	Members  []MemberInfo `json:"members"`
}

// RegistryInfoResponse describes the managed registry.
type RegistryInfoResponse struct {
	Registry  string   `json:"registry"`
	Authority string   `json:"authority"`
	Slot      uint64   `json:"slot"`
	Shards    []string `json:"shards"`
}
