package backup

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureStorageProvider implements StorageProvider for Azure Blob Storage
type AzureStorageProvider struct {
	serviceURL    azblob.ServiceURL
	containerName string
	prefix        string
}

// NewAzureStorageProvider creates a new AzureStorageProvider instance
func NewAzureStorageProvider(config *AzureConfig) (*AzureStorageProvider, error) {
	if config == nil {
		return nil, NewValidationError("Azure storage configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid Azure storage configuration", err)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureStorageProvider{
		serviceURL:    azblob.NewServiceURL(*serviceURL, pipeline),
		containerName: config.ContainerName,
		prefix:        "snapshots/",
	}, nil
}

// Store uploads a snapshot payload and its metadata sidecar to Azure
func (azp *AzureStorageProvider) Store(ctx context.Context, metadata *SnapshotMetadata, data []byte) error {
	if metadata == nil {
		return NewValidationError("snapshot metadata cannot be nil", nil)
	}

	blobName := azp.getSnapshotBlobName(metadata.ID)
	metadata.StorageLocation = fmt.Sprintf("azure://%s/%s", azp.containerName, blobName)

	if err := metadata.Validate(); err != nil {
		return NewValidationError("invalid snapshot metadata", err)
	}

	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)

	dataBlobURL := containerURL.NewBlockBlobURL(blobName + "/" + DataFileName(metadata))
	_, err := azblob.UploadBufferToBlockBlob(ctx, data, dataBlobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024, // 4MB blocks
		Parallelism: 16,
		Metadata: azblob.Metadata{
			"snapshot_id": metadata.ID,
			"created_by":  metadata.CreatedBy,
			"compression": string(metadata.CompressionType),
			"checksum":    metadata.Checksum,
		},
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		return NewStorageError("failed to upload snapshot to Azure", err)
	}

	metadataJSON, err := metadata.ToJSON()
	if err != nil {
		return NewStorageError("failed to serialize metadata", err)
	}

	metadataBlobURL := containerURL.NewBlockBlobURL(blobName + "/metadata.json")
	_, err = azblob.UploadBufferToBlockBlob(ctx, metadataJSON, metadataBlobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/json",
		},
	})
	if err != nil {
		return NewStorageError("failed to upload metadata to Azure", err)
	}

	return nil
}

// Retrieve downloads a snapshot payload and metadata from Azure
func (azp *AzureStorageProvider) Retrieve(ctx context.Context, snapshotID string) ([]byte, *SnapshotMetadata, error) {
	if snapshotID == "" {
		return nil, nil, NewValidationError("snapshot ID cannot be empty", nil)
	}

	metadata, err := azp.GetMetadata(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	blobName := azp.getSnapshotBlobName(snapshotID) + "/" + DataFileName(metadata)
	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)
	blobURL := containerURL.NewBlockBlobURL(blobName)

	downloadResponse, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, nil, NewStorageError(fmt.Sprintf("failed to download snapshot %s from Azure", snapshotID), err)
	}

	bodyStream := downloadResponse.Body(azblob.RetryReaderOptions{MaxRetryRequests: 20})
	defer bodyStream.Close()

	data, err := io.ReadAll(bodyStream)
	if err != nil {
		return nil, nil, NewStorageError("failed to read snapshot data", err)
	}

	return data, metadata, nil
}

// Delete removes a snapshot's blobs from Azure
func (azp *AzureStorageProvider) Delete(ctx context.Context, snapshotID string) error {
	if snapshotID == "" {
		return NewValidationError("snapshot ID cannot be empty", nil)
	}

	blobPrefix := azp.getSnapshotBlobName(snapshotID)
	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)

	var blobsToDelete []string
	for marker := (azblob.Marker{}); marker.NotDone(); {
		listResponse, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: blobPrefix,
		})
		if err != nil {
			return NewStorageError("failed to list snapshot blobs", err)
		}

		for _, blob := range listResponse.Segment.BlobItems {
			blobsToDelete = append(blobsToDelete, blob.Name)
		}

		marker = listResponse.NextMarker
	}

	if len(blobsToDelete) == 0 {
		return NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), nil)
	}

	for _, blobName := range blobsToDelete {
		blobURL := containerURL.NewBlockBlobURL(blobName)
		_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
		if err != nil {
			return NewStorageError(fmt.Sprintf("failed to delete blob %s", blobName), err)
		}
	}

	return nil
}

// List returns metadata for stored snapshots matching the filter
func (azp *AzureStorageProvider) List(ctx context.Context, filter StorageFilter) ([]*SnapshotMetadata, error) {
	var snapshots []*SnapshotMetadata

	prefix := azp.prefix
	if filter.Prefix != "" {
		prefix = azp.prefix + filter.Prefix
	}

	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)

	for marker := (azblob.Marker{}); marker.NotDone(); {
		listResponse, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: prefix,
		})
		if err != nil {
			return nil, NewStorageError("failed to list snapshots from Azure", err)
		}

		for _, blob := range listResponse.Segment.BlobItems {
			if !strings.HasSuffix(blob.Name, "/metadata.json") {
				continue
			}

			snapshotID := azp.extractSnapshotIDFromBlobName(blob.Name)
			if snapshotID == "" {
				continue
			}

			metadata, err := azp.GetMetadata(ctx, snapshotID)
			if err != nil {
				// Skip unreadable entries, keep listing the rest
				continue
			}

			snapshots = append(snapshots, metadata)

			if filter.MaxItems > 0 && len(snapshots) >= filter.MaxItems {
				return snapshots, nil
			}
		}

		marker = listResponse.NextMarker
	}

	return snapshots, nil
}

// GetMetadata retrieves metadata for a specific snapshot
func (azp *AzureStorageProvider) GetMetadata(ctx context.Context, snapshotID string) (*SnapshotMetadata, error) {
	if snapshotID == "" {
		return nil, NewValidationError("snapshot ID cannot be empty", nil)
	}

	blobName := azp.getSnapshotBlobName(snapshotID) + "/metadata.json"
	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)
	blobURL := containerURL.NewBlockBlobURL(blobName)

	downloadResponse, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), err)
	}

	bodyStream := downloadResponse.Body(azblob.RetryReaderOptions{MaxRetryRequests: 20})
	defer bodyStream.Close()

	data, err := io.ReadAll(bodyStream)
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

// getSnapshotBlobName returns the Azure blob name prefix for a snapshot
func (azp *AzureStorageProvider) getSnapshotBlobName(snapshotID string) string {
	sanitized := strings.ReplaceAll(snapshotID, " ", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	return azp.prefix + sanitized
}

// extractSnapshotIDFromBlobName extracts the snapshot ID from an Azure blob name
func (azp *AzureStorageProvider) extractSnapshotIDFromBlobName(blobName string) string {
	if !strings.HasPrefix(blobName, azp.prefix) {
		return ""
	}

	withoutPrefix := strings.TrimPrefix(blobName, azp.prefix)
	if !strings.HasSuffix(withoutPrefix, "/metadata.json") {
		return ""
	}

	return strings.TrimSuffix(withoutPrefix, "/metadata.json")
}

// HealthCheck verifies that the container is accessible and listable
func (azp *AzureStorageProvider) HealthCheck(ctx context.Context) error {
	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)

	_, err := containerURL.GetProperties(ctx, azblob.LeaseAccessConditions{})
	if err != nil {
		return NewStorageError("Azure storage provider health check failed: container not accessible", err)
	}

	_, err = containerURL.ListBlobsFlatSegment(ctx, azblob.Marker{}, azblob.ListBlobsSegmentOptions{
		Prefix:     azp.prefix,
		MaxResults: 1,
	})
	if err != nil {
		return NewStorageError("Azure storage provider health check failed: cannot list blobs", err)
	}

	return nil
}
