/*
Package clients provides client libraries for the allowlist registry API.

AdminClient wraps both route groups of the service:

  - Admin operations: AddMember, RemoveMember, CreateShard, Close, Snapshot
  - Public queries: MemberStatus, ListMembers, RegistryInfo

The server address is either configured directly or resolved from a DNS SRV
record with DiscoverServerAddr, so operator tooling can follow the service
across hosts without reconfiguration.
*/
package clients
