// Package main (cmd/allowlist_client) implements the operator CLI for the
// allowlist registry service.
//
// The client talks to the server's HTTP API. The target registry is named
// by its map account identity, and the server address is either given
// directly or discovered from a DNS SRV record:
//
//	allowlist-client --registry=<hex> --server-addr=http://10.0.0.5:8080 status
//	allowlist-client --registry=<hex> --discover-srv=_allowlist._tcp.example.com add <member-hex> --allocation=1000
package main
