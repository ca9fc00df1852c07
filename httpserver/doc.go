// Package httpserver hosts the allowlist registry API over HTTP.
//
// The server exposes the admin and public registry routes, health endpoints
// (livez, readyz) with drain/undrain controls for load balancer rotation,
// an optional pprof mount, and a Prometheus metrics listener on a separate
// address.
package httpserver
