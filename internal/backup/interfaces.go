package backup

import (
	"context"
)

// StorageProvider persists snapshot payloads with a metadata sidecar. The
// payload is opaque bytes; any compression or encryption already happened
// upstream and is recorded in the metadata.
type StorageProvider interface {
	// Store saves the payload and its metadata under metadata.ID
	Store(ctx context.Context, metadata *SnapshotMetadata, data []byte) error

	// Retrieve loads the payload and metadata for a snapshot ID
	Retrieve(ctx context.Context, snapshotID string) ([]byte, *SnapshotMetadata, error)

	// Delete removes a stored snapshot
	Delete(ctx context.Context, snapshotID string) error

	// List returns metadata for stored snapshots matching the filter
	List(ctx context.Context, filter StorageFilter) ([]*SnapshotMetadata, error)

	// GetMetadata retrieves metadata without loading the payload
	GetMetadata(ctx context.Context, snapshotID string) (*SnapshotMetadata, error)

	// HealthCheck verifies the provider is accessible and writable
	HealthCheck(ctx context.Context) error
}

// DataFileName returns the payload filename for a snapshot, derived from its
// compression and encryption settings.
func DataFileName(metadata *SnapshotMetadata) string {
	name := "snapshot.json"
	name += NewCompressionManager().FileExtension(metadata.CompressionType)
	if metadata.EncryptionEnabled {
		name += ".enc"
	}
	return name
}
