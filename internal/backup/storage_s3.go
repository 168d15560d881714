package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3StorageProvider implements StorageProvider for Amazon S3 storage
type S3StorageProvider struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3StorageProvider creates a new S3StorageProvider instance
func NewS3StorageProvider(config *S3Config) (*S3StorageProvider, error) {
	if config == nil {
		return nil, NewValidationError("S3 storage configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid S3 storage configuration", err)
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"", // token
		),
	})
	if err != nil {
		return nil, NewStorageError("failed to create AWS session", err)
	}

	return &S3StorageProvider{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: "snapshots/",
	}, nil
}

// Store uploads a snapshot payload and its metadata sidecar to S3
func (s3p *S3StorageProvider) Store(ctx context.Context, metadata *SnapshotMetadata, data []byte) error {
	if metadata == nil {
		return NewValidationError("snapshot metadata cannot be nil", nil)
	}

	objectKey := s3p.getSnapshotObjectKey(metadata.ID)
	metadata.StorageLocation = fmt.Sprintf("s3://%s/%s", s3p.bucket, objectKey)

	if err := metadata.Validate(); err != nil {
		return NewValidationError("invalid snapshot metadata", err)
	}

	_, err := s3p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3p.bucket),
		Key:         aws.String(objectKey + "/" + DataFileName(metadata)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]*string{
			"snapshot-id": aws.String(metadata.ID),
			"created-by":  aws.String(metadata.CreatedBy),
			"compression": aws.String(string(metadata.CompressionType)),
			"checksum":    aws.String(metadata.Checksum),
		},
	})
	if err != nil {
		return NewStorageError("failed to upload snapshot to S3", err)
	}

	metadataJSON, err := metadata.ToJSON()
	if err != nil {
		return NewStorageError("failed to serialize metadata", err)
	}

	_, err = s3p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3p.bucket),
		Key:         aws.String(objectKey + "/metadata.json"),
		Body:        bytes.NewReader(metadataJSON),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return NewStorageError("failed to upload metadata to S3", err)
	}

	return nil
}

// Retrieve downloads a snapshot payload and metadata from S3
func (s3p *S3StorageProvider) Retrieve(ctx context.Context, snapshotID string) ([]byte, *SnapshotMetadata, error) {
	if snapshotID == "" {
		return nil, nil, NewValidationError("snapshot ID cannot be empty", nil)
	}

	metadata, err := s3p.GetMetadata(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	objectKey := s3p.getSnapshotObjectKey(snapshotID) + "/" + DataFileName(metadata)
	result, err := s3p.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3p.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, nil, NewStorageError(fmt.Sprintf("failed to download snapshot %s from S3", snapshotID), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, nil, NewStorageError("failed to read snapshot data", err)
	}

	return data, metadata, nil
}

// Delete removes a snapshot's objects from S3
func (s3p *S3StorageProvider) Delete(ctx context.Context, snapshotID string) error {
	if snapshotID == "" {
		return NewValidationError("snapshot ID cannot be empty", nil)
	}

	objectPrefix := s3p.getSnapshotObjectKey(snapshotID)

	listResult, err := s3p.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s3p.bucket),
		Prefix: aws.String(objectPrefix),
	})
	if err != nil {
		return NewStorageError("failed to list snapshot objects", err)
	}

	if len(listResult.Contents) == 0 {
		return NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), nil)
	}

	var objectsToDelete []*s3.ObjectIdentifier
	for _, obj := range listResult.Contents {
		objectsToDelete = append(objectsToDelete, &s3.ObjectIdentifier{
			Key: obj.Key,
		})
	}

	_, err = s3p.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s3p.bucket),
		Delete: &s3.Delete{
			Objects: objectsToDelete,
		},
	})
	if err != nil {
		return NewStorageError("failed to delete snapshot objects from S3", err)
	}

	return nil
}

// List returns metadata for stored snapshots matching the filter
func (s3p *S3StorageProvider) List(ctx context.Context, filter StorageFilter) ([]*SnapshotMetadata, error) {
	var snapshots []*SnapshotMetadata

	prefix := s3p.prefix
	if filter.Prefix != "" {
		prefix = s3p.prefix + filter.Prefix
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s3p.bucket),
		Prefix: aws.String(prefix),
	}

	err := s3p.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				if !strings.HasSuffix(*obj.Key, "/metadata.json") {
					continue
				}

				snapshotID := s3p.extractSnapshotIDFromKey(*obj.Key)
				if snapshotID == "" {
					continue
				}

				metadata, err := s3p.GetMetadata(ctx, snapshotID)
				if err != nil {
					// Skip unreadable entries, keep listing the rest
					continue
				}

				snapshots = append(snapshots, metadata)

				if filter.MaxItems > 0 && len(snapshots) >= filter.MaxItems {
					return false
				}
			}
			return true
		})

	if err != nil {
		return nil, NewStorageError("failed to list snapshots from S3", err)
	}

	return snapshots, nil
}

// GetMetadata retrieves metadata for a specific snapshot
func (s3p *S3StorageProvider) GetMetadata(ctx context.Context, snapshotID string) (*SnapshotMetadata, error) {
	if snapshotID == "" {
		return nil, NewValidationError("snapshot ID cannot be empty", nil)
	}

	objectKey := s3p.getSnapshotObjectKey(snapshotID) + "/metadata.json"

	result, err := s3p.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3p.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
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

// getSnapshotObjectKey returns the S3 object key prefix for a snapshot
func (s3p *S3StorageProvider) getSnapshotObjectKey(snapshotID string) string {
	sanitized := strings.ReplaceAll(snapshotID, " ", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	return s3p.prefix + sanitized
}

// extractSnapshotIDFromKey extracts the snapshot ID from an S3 object key
func (s3p *S3StorageProvider) extractSnapshotIDFromKey(objectKey string) string {
	if !strings.HasPrefix(objectKey, s3p.prefix) {
		return ""
	}

	withoutPrefix := strings.TrimPrefix(objectKey, s3p.prefix)
	if !strings.HasSuffix(withoutPrefix, "/metadata.json") {
		return ""
	}

	return strings.TrimSuffix(withoutPrefix, "/metadata.json")
}

// HealthCheck verifies that the bucket is accessible and listable
func (s3p *S3StorageProvider) HealthCheck(ctx context.Context) error {
	_, err := s3p.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s3p.bucket),
	})
	if err != nil {
		return NewStorageError("S3 storage provider health check failed: bucket not accessible", err)
	}

	_, err = s3p.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s3p.bucket),
		Prefix:  aws.String(s3p.prefix),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return NewStorageError("S3 storage provider health check failed: cannot list objects", err)
	}

	return nil
}
