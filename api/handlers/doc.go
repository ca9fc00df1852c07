// Package handlers implements the HTTP handlers for the allowlist registry
// service.
//
// Admin routes build and submit registry transactions through the allowlist
// client and require the service's authority keypair. Public routes read
// account state only and never mutate the ledger. Registry program errors
// map to HTTP statuses: duplicate and capacity conflicts return 409, missing
// entries 404, authority failures 403, malformed input 400.
package handlers
