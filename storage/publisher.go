package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tokengate/token-allowlist-backend/interfaces"
)

// Manifest describes a published ledger snapshot. Manifests are stored
// alongside snapshots so operators can discover what a given snapshot ID
// contains without fetching the full data.
type Manifest struct {
	SnapshotID string    `json:"snapshot_id"`
	Slot       uint64    `json:"slot"`
	Size       int       `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

// Publisher stores encoded ledger snapshots together with their manifests.
type Publisher struct {
	backend interfaces.StorageBackend
	log     *slog.Logger
}

// NewPublisher creates a snapshot publisher over the given backend.
func NewPublisher(backend interfaces.StorageBackend, log *slog.Logger) *Publisher {
	return &Publisher{backend: backend, log: log}
}

// Publish stores an encoded snapshot and a manifest describing it. Returns
// the snapshot ID and the manifest ID.
func (p *Publisher) Publish(ctx context.Context, data []byte, slot uint64) (interfaces.SnapshotID, interfaces.SnapshotID, error) {
	snapshotID, err := p.backend.Store(ctx, data, interfaces.SnapshotType)
	if err != nil {
		return interfaces.SnapshotID{}, interfaces.SnapshotID{}, fmt.Errorf("failed to store snapshot: %w", err)
	}

	manifest := Manifest{
		SnapshotID: snapshotID.String(),
		Slot:       slot,
		Size:       len(data),
		CreatedAt:  time.Now().UTC(),
	}

	manifestData, err := json.Marshal(manifest)
	if err != nil {
		return snapshotID, interfaces.SnapshotID{}, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	manifestID, err := p.backend.Store(ctx, manifestData, interfaces.ManifestType)
	if err != nil {
		return snapshotID, interfaces.SnapshotID{}, fmt.Errorf("failed to store manifest: %w", err)
	}

	p.log.Info("Published snapshot",
		slog.String("snapshot_id", snapshotID.String()),
		slog.String("manifest_id", manifestID.String()),
		slog.Uint64("slot", slot),
		slog.Int("size", len(data)))

	return snapshotID, manifestID, nil
}

// Load fetches an encoded snapshot by ID.
func (p *Publisher) Load(ctx context.Context, id interfaces.SnapshotID) ([]byte, error) {
	return p.backend.Fetch(ctx, id, interfaces.SnapshotType)
}

// LoadManifest fetches and decodes a manifest by ID.
func (p *Publisher) LoadManifest(ctx context.Context, id interfaces.SnapshotID) (Manifest, error) {
	data, err := p.backend.Fetch(ctx, id, interfaces.ManifestType)
	if err != nil {
		return Manifest{}, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	return manifest, nil
}
