package backup

import (
	"context"
	"fmt"

	"empresa-sync/internal/logging"
)

// StorageProviderFactory creates storage providers based on configuration
type StorageProviderFactory struct {
	logger *logging.Logger
}

// NewStorageProviderFactory creates a new storage provider factory
func NewStorageProviderFactory(logger *logging.Logger) *StorageProviderFactory {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &StorageProviderFactory{logger: logger}
}

// CreateStorageProvider creates a storage provider based on the storage configuration
func (spf *StorageProviderFactory) CreateStorageProvider(ctx context.Context, config StorageConfig) (StorageProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid storage configuration", err)
	}

	switch config.Provider {
	case StorageProviderLocal:
		return NewLocalStorageProvider(config.Local, spf.logger)

	case StorageProviderS3:
		return NewS3StorageProvider(config.S3)

	case StorageProviderAzure:
		return NewAzureStorageProvider(config.Azure)

	case StorageProviderGCS:
		return NewGCSStorageProvider(ctx, config.GCS)

	default:
		return nil, NewValidationError(fmt.Sprintf("unsupported storage provider: %s", config.Provider), nil)
	}
}

// GetSupportedProviders returns a list of supported storage provider types
func (spf *StorageProviderFactory) GetSupportedProviders() []StorageProviderType {
	return []StorageProviderType{
		StorageProviderLocal,
		StorageProviderS3,
		StorageProviderAzure,
		StorageProviderGCS,
	}
}

// Validate checks a storage configuration and the section for the selected provider
func (sc *StorageConfig) Validate() error {
	if !isValidStorageProviderType(sc.Provider) {
		return NewValidationError(fmt.Sprintf("invalid storage provider: %s", sc.Provider), nil)
	}

	switch sc.Provider {
	case StorageProviderLocal:
		if sc.Local == nil {
			return NewValidationError("local storage configuration is required", nil)
		}
		return sc.Local.Validate()
	case StorageProviderS3:
		if sc.S3 == nil {
			return NewValidationError("S3 storage configuration is required", nil)
		}
		return sc.S3.Validate()
	case StorageProviderAzure:
		if sc.Azure == nil {
			return NewValidationError("Azure storage configuration is required", nil)
		}
		return sc.Azure.Validate()
	case StorageProviderGCS:
		if sc.GCS == nil {
			return NewValidationError("GCS storage configuration is required", nil)
		}
		return sc.GCS.Validate()
	}

	return nil
}

// Validate checks the local storage configuration. An empty base path is
// valid and routes writes to the fallback directory.
func (lc *LocalConfig) Validate() error {
	if lc.FallbackPath == "" {
		return NewValidationError("fallback path is required", nil)
	}
	return nil
}

// Validate checks the S3 storage configuration
func (sc *S3Config) Validate() error {
	errors := &ValidationErrors{}
	if sc.Bucket == "" {
		errors.Add("bucket", "S3 bucket is required", nil)
	}
	if sc.Region == "" {
		errors.Add("region", "S3 region is required", nil)
	}
	if sc.AccessKey == "" {
		errors.Add("access_key", "S3 access key is required", nil)
	}
	if sc.SecretKey == "" {
		errors.Add("secret_key", "S3 secret key is required", nil)
	}
	if errors.HasErrors() {
		return errors
	}
	return nil
}

// Validate checks the Azure storage configuration
func (ac *AzureConfig) Validate() error {
	errors := &ValidationErrors{}
	if ac.AccountName == "" {
		errors.Add("account_name", "Azure account name is required", nil)
	}
	if ac.AccountKey == "" {
		errors.Add("account_key", "Azure account key is required", nil)
	}
	if ac.ContainerName == "" {
		errors.Add("container_name", "Azure container name is required", nil)
	}
	if errors.HasErrors() {
		return errors
	}
	return nil
}

// Validate checks the GCS storage configuration
func (gc *GCSConfig) Validate() error {
	if gc.Bucket == "" {
		return NewValidationError("GCS bucket is required", nil)
	}
	return nil
}
