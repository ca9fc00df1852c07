package common

// Version is the build version, overridden at link time via
// -ldflags "-X github.com/tokengate/token-allowlist-backend/common.Version=...".
var Version = "dev"
