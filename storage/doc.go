// Package storage provides content-addressed persistence for ledger
// snapshots across multiple backend types.
//
// Supported backends:
//   - File: local filesystem storage organized by content type
//   - S3: Amazon S3 or compatible object storage
//   - IPFS: distributed content-addressed storage
//   - Vault: HashiCorp Vault KV v2 secrets engine
//
// Backends are created from location URIs by StorageBackendFactory and can
// be aggregated into a MultiStorageBackend that stores to every available
// backend and fetches from the first one holding the content.
//
// All backends key content by the SHA-256 hash of the stored bytes, so a
// snapshot ID computed locally can be fetched from any replica.
package storage
