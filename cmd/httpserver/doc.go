// Package main (cmd/httpserver) implements the allowlist registry server.
//
// The server hosts an in-process ledger running the allowlist registry
// program and exposes it over HTTP: admin routes for listing and delisting
// members, shard management and account teardown, and public routes for
// allowlist lookups. On first boot it initializes the registry map account
// and one shard; later boots reconnect to the same accounts because all
// keys derive deterministically from the keystore master seed.
//
// The master seed comes from either a hex flag or a passphrase:
//
//	allowlist-server --keystore-seed=0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef
//	allowlist-server --keystore-passphrase="correct horse" --keystore-salt=prod
//
// Ledger snapshots can be replicated to one or more storage backends:
//
//	allowlist-server --storage-uri=file:///var/lib/allowlist \
//	    --storage-uri="s3://KEY:SECRET@bucket/snapshots?region=us-east-1"
//
// The server implements graceful shutdown on SIGINT/SIGTERM and supports
// health checks, Prometheus metrics and optional pprof endpoints.
package main
