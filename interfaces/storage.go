package interfaces

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// SnapshotID is a 32-byte SHA-256 hash uniquely identifying a persisted
// ledger snapshot or manifest.
type SnapshotID [32]byte

// NewSnapshotIDFromBytes creates a snapshot ID from a raw 32-byte slice.
func NewSnapshotIDFromBytes(source []byte) (SnapshotID, error) {
	if len(source) != 32 {
		return SnapshotID{}, errors.New("invalid snapshot ID conversion from bytes: incorrect length")
	}

	var hash [32]byte
	copy(hash[:], source)
	return SnapshotID(hash), nil
}

// NewSnapshotIDFromHex creates a snapshot ID from a 64-character hex string.
func NewSnapshotIDFromHex(source string) (SnapshotID, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return SnapshotID{}, errors.New("invalid snapshot ID length: hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return SnapshotID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var hash [32]byte
	copy(hash[:], raw)
	return SnapshotID(hash), nil
}

// ComputeSnapshotID calculates the snapshot ID from encoded snapshot data.
func ComputeSnapshotID(data []byte) SnapshotID {
	return SnapshotID(sha256.Sum256(data))
}

// String returns hex representation.
func (id SnapshotID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 32-byte hash.
func (id SnapshotID) Bytes() []byte {
	return id[:]
}

// Equal compares two snapshot IDs.
func (id SnapshotID) Equal(other SnapshotID) bool {
	return bytes.Equal(id[:], other[:])
}

// ContentType indicates the storage namespace.
type ContentType int

const (
	// SnapshotType for encoded ledger snapshots.
	SnapshotType ContentType = iota
	// ManifestType for JSON manifests describing a snapshot (slot, ID, timestamp).
	ManifestType
)

// String returns the type name.
func (ct ContentType) String() string {
	switch ct {
	case SnapshotType:
		return "snapshot"
	case ManifestType:
		return "manifest"
	default:
		return "unknown"
	}
}

// StorageBackendLocation represents a parsed storage backend URI.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := parsed.Scheme
	switch scheme {
	case "file", "s3", "ipfs", "vault":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend provides content-addressed snapshot storage.
type StorageBackend interface {
	// Fetch retrieves data by snapshot ID and type.
	Fetch(ctx context.Context, id SnapshotID, contentType ContentType) ([]byte, error)

	// Store saves data and returns its snapshot ID.
	Store(ctx context.Context, data []byte, contentType ContentType) (SnapshotID, error)

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string

	// LocationURI returns the URI identifying this backend.
	LocationURI() string
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates a backend from a URI.
	// Supports file://, s3://, ipfs://, vault://
	StorageBackendFor(locationURI StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates an aggregated storage backend with fallback.
	CreateMultiBackend(locationURIs []StorageBackendLocation) (StorageBackend, error)
}
