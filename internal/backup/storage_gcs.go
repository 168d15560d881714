package backup

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStorageProvider implements StorageProvider for Google Cloud Storage
type GCSStorageProvider struct {
	client     *storage.Client
	bucketName string
	prefix     string
}

// NewGCSStorageProvider creates a new GCSStorageProvider instance
func NewGCSStorageProvider(ctx context.Context, config *GCSConfig) (*GCSStorageProvider, error) {
	if config == nil {
		return nil, NewValidationError("GCS storage configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid GCS storage configuration", err)
	}

	var client *storage.Client
	var err error

	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		// Default credentials from environment or metadata server
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, NewStorageError("failed to create GCS client", err)
	}

	return &GCSStorageProvider{
		client:     client,
		bucketName: config.Bucket,
		prefix:     "snapshots/",
	}, nil
}

// Store uploads a snapshot payload and its metadata sidecar to GCS
func (gcsp *GCSStorageProvider) Store(ctx context.Context, metadata *SnapshotMetadata, data []byte) error {
	if metadata == nil {
		return NewValidationError("snapshot metadata cannot be nil", nil)
	}

	objectName := gcsp.getSnapshotObjectName(metadata.ID)
	metadata.StorageLocation = fmt.Sprintf("gs://%s/%s", gcsp.bucketName, objectName)

	if err := metadata.Validate(); err != nil {
		return NewValidationError("invalid snapshot metadata", err)
	}

	bucket := gcsp.client.Bucket(gcsp.bucketName)

	dataObject := bucket.Object(objectName + "/" + DataFileName(metadata))
	dataWriter := dataObject.NewWriter(ctx)
	dataWriter.ContentType = "application/octet-stream"
	dataWriter.Metadata = map[string]string{
		"snapshot-id": metadata.ID,
		"created-by":  metadata.CreatedBy,
		"compression": string(metadata.CompressionType),
		"checksum":    metadata.Checksum,
	}

	if _, err := dataWriter.Write(data); err != nil {
		dataWriter.Close()
		return NewStorageError("failed to write snapshot data to GCS", err)
	}

	if err := dataWriter.Close(); err != nil {
		return NewStorageError("failed to upload snapshot to GCS", err)
	}

	metadataJSON, err := metadata.ToJSON()
	if err != nil {
		return NewStorageError("failed to serialize metadata", err)
	}

	metadataObject := bucket.Object(objectName + "/metadata.json")
	metadataWriter := metadataObject.NewWriter(ctx)
	metadataWriter.ContentType = "application/json"

	if _, err := metadataWriter.Write(metadataJSON); err != nil {
		metadataWriter.Close()
		return NewStorageError("failed to write metadata to GCS", err)
	}

	if err := metadataWriter.Close(); err != nil {
		return NewStorageError("failed to upload metadata to GCS", err)
	}

	return nil
}

// Retrieve downloads a snapshot payload and metadata from GCS
func (gcsp *GCSStorageProvider) Retrieve(ctx context.Context, snapshotID string) ([]byte, *SnapshotMetadata, error) {
	if snapshotID == "" {
		return nil, nil, NewValidationError("snapshot ID cannot be empty", nil)
	}

	metadata, err := gcsp.GetMetadata(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	objectName := gcsp.getSnapshotObjectName(snapshotID) + "/" + DataFileName(metadata)
	bucket := gcsp.client.Bucket(gcsp.bucketName)

	reader, err := bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, nil, NewStorageError(fmt.Sprintf("failed to download snapshot %s from GCS", snapshotID), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, NewStorageError("failed to read snapshot data", err)
	}

	return data, metadata, nil
}

// Delete removes a snapshot's objects from GCS
func (gcsp *GCSStorageProvider) Delete(ctx context.Context, snapshotID string) error {
	if snapshotID == "" {
		return NewValidationError("snapshot ID cannot be empty", nil)
	}

	objectPrefix := gcsp.getSnapshotObjectName(snapshotID)
	bucket := gcsp.client.Bucket(gcsp.bucketName)

	query := &storage.Query{Prefix: objectPrefix}
	it := bucket.Objects(ctx, query)

	var objectsToDelete []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return NewStorageError("failed to list snapshot objects", err)
		}
		objectsToDelete = append(objectsToDelete, attrs.Name)
	}

	if len(objectsToDelete) == 0 {
		return NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), nil)
	}

	for _, objectName := range objectsToDelete {
		if err := bucket.Object(objectName).Delete(ctx); err != nil {
			return NewStorageError(fmt.Sprintf("failed to delete object %s", objectName), err)
		}
	}

	return nil
}

// List returns metadata for stored snapshots matching the filter
func (gcsp *GCSStorageProvider) List(ctx context.Context, filter StorageFilter) ([]*SnapshotMetadata, error) {
	var snapshots []*SnapshotMetadata

	prefix := gcsp.prefix
	if filter.Prefix != "" {
		prefix = gcsp.prefix + filter.Prefix
	}

	bucket := gcsp.client.Bucket(gcsp.bucketName)
	it := bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, NewStorageError("failed to list snapshots from GCS", err)
		}

		if !strings.HasSuffix(attrs.Name, "/metadata.json") {
			continue
		}

		snapshotID := gcsp.extractSnapshotIDFromObjectName(attrs.Name)
		if snapshotID == "" {
			continue
		}

		metadata, err := gcsp.GetMetadata(ctx, snapshotID)
		if err != nil {
			// Skip unreadable entries, keep listing the rest
			continue
		}

		snapshots = append(snapshots, metadata)

		if filter.MaxItems > 0 && len(snapshots) >= filter.MaxItems {
			break
		}
	}

	return snapshots, nil
}

// GetMetadata retrieves metadata for a specific snapshot
func (gcsp *GCSStorageProvider) GetMetadata(ctx context.Context, snapshotID string) (*SnapshotMetadata, error) {
	if snapshotID == "" {
		return nil, NewValidationError("snapshot ID cannot be empty", nil)
	}

	objectName := gcsp.getSnapshotObjectName(snapshotID) + "/metadata.json"
	bucket := gcsp.client.Bucket(gcsp.bucketName)

	reader, err := bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewStorageError("failed to read metadata", err)
	}

	metadata := &SnapshotMetadata{}
	if err := metadata.FromJSON(data); err != nil {
		return nil, NewStorageError("failed to unmarshal metadata", err)
	}

	if err := metadata.Validate(); err != nil {
		return nil, NewValidationError("invalid metadata", err)
	}

	return metadata, nil
}

// getSnapshotObjectName returns the GCS object name prefix for a snapshot
func (gcsp *GCSStorageProvider) getSnapshotObjectName(snapshotID string) string {
	sanitized := strings.ReplaceAll(snapshotID, " ", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	return gcsp.prefix + sanitized
}

// extractSnapshotIDFromObjectName extracts the snapshot ID from a GCS object name
func (gcsp *GCSStorageProvider) extractSnapshotIDFromObjectName(objectName string) string {
	if !strings.HasPrefix(objectName, gcsp.prefix) {
		return ""
	}

	withoutPrefix := strings.TrimPrefix(objectName, gcsp.prefix)
	if !strings.HasSuffix(withoutPrefix, "/metadata.json") {
		return ""
	}

	return strings.TrimSuffix(withoutPrefix, "/metadata.json")
}

// HealthCheck verifies that the bucket is accessible and listable
func (gcsp *GCSStorageProvider) HealthCheck(ctx context.Context) error {
	bucket := gcsp.client.Bucket(gcsp.bucketName)

	_, err := bucket.Attrs(ctx)
	if err != nil {
		return NewStorageError("GCS storage provider health check failed: bucket not accessible", err)
	}

	it := bucket.Objects(ctx, &storage.Query{Prefix: gcsp.prefix})
	_, err = it.Next()
	if err != nil && err != iterator.Done {
		return NewStorageError("GCS storage provider health check failed: cannot list objects", err)
	}

	return nil
}

// Close closes the GCS client
func (gcsp *GCSStorageProvider) Close() error {
	return gcsp.client.Close()
}
