package backup

import (
	"os"
	"time"

	"empresa-sync/internal/store"
)

// SchemaVersion is the only snapshot document version this tool reads or
// writes.
const SchemaVersion = 1

// PageSize is how many rows the paginated reader requests per select.
const PageSize = 1000

// ChunkSize is how many rows the batched writer sends per upsert.
const ChunkSize = 500

// ConflictKey is the unique-identifier column used for upsert conflict
// resolution on every application table.
const ConflictKey = "id"

// AllTables is the closed set of application tables a snapshot must carry,
// in canonical document order.
var AllTables = []string{
	"departamentos",
	"usuarios",
	"servicos",
	"empresas",
	"rets",
	"responsaveis",
	"documentos",
	"observacoes",
	"logs",
	"lixeira",
	"notificacoes",
}

// Critical tables hold the company graph; a restore failure on any of them
// aborts the whole restore. Insert order is parents before children, delete
// order the exact reverse, matching the store's foreign-key constraints.
var (
	CriticalInsertOrder = []string{"servicos", "empresas", "rets", "responsaveis", "documentos", "observacoes"}
	CriticalDeleteOrder = []string{"observacoes", "documentos", "responsaveis", "rets", "empresas", "servicos"}
)

// Secondary tables are restored best-effort; the store's access rules may
// forbid bulk overwrite of these for non-privileged callers.
var (
	SecondaryDeleteOrder = []string{"notificacoes", "lixeira", "logs"}
	SecondaryInsertOrder = []string{"departamentos", "usuarios", "logs", "lixeira", "notificacoes"}
)

// Snapshot is the versioned export document. Field names are the wire format
// shared with the web application and must not change.
type Snapshot struct {
	Versao   int                    `json:"versao"`
	CriadoEm string                 `json:"criadoEm"`
	Tabelas  map[string][]store.Row `json:"tabelas"`
	Contagem map[string]int         `json:"contagem"`
}

// SnapshotMetadata is the sidecar record stored next to each snapshot file
type SnapshotMetadata struct {
	ID                string          `json:"id"`
	CreatedAt         time.Time       `json:"created_at"`
	CreatedBy         string          `json:"created_by"`
	Description       string          `json:"description"`
	TableCounts       map[string]int  `json:"table_counts"`
	TotalRows         int             `json:"total_rows"`
	Size              int64           `json:"size"`
	CompressedSize    int64           `json:"compressed_size"`
	CompressionType   CompressionType `json:"compression_type"`
	EncryptionEnabled bool            `json:"encryption_enabled"`
	StorageLocation   string          `json:"storage_location"`
	Checksum          string          `json:"checksum"`
	Status            SnapshotStatus  `json:"status"`
}

// FailurePolicy selects how the batched writer and the bulk delete react to
// a store failure.
type FailurePolicy int

const (
	// FailFast aborts on the first failed chunk and propagates the error.
	FailFast FailurePolicy = iota
	// BestEffort falls back to plain insert, logs residual failures, and
	// always completes.
	BestEffort
)

// ProgressFunc receives the table currently being processed. No row data is
// passed through it.
type ProgressFunc func(table string)

// RestoreResult summarizes a completed restore
type RestoreResult struct {
	TablesRestored int            `json:"tables_restored"`
	TablesSkipped  []string       `json:"tables_skipped"`
	RowsWritten    map[string]int `json:"rows_written"`
	Duration       time.Duration  `json:"duration"`
	DryRun         bool           `json:"dry_run"`
}

// StorageConfig defines snapshot storage provider configuration
type StorageConfig struct {
	Provider StorageProviderType `yaml:"provider" mapstructure:"provider"`
	Local    *LocalConfig        `yaml:"local,omitempty" mapstructure:"local"`
	S3       *S3Config           `yaml:"s3,omitempty" mapstructure:"s3"`
	Azure    *AzureConfig        `yaml:"azure,omitempty" mapstructure:"azure"`
	GCS      *GCSConfig          `yaml:"gcs,omitempty" mapstructure:"gcs"`
}

// LocalConfig for local folder storage
type LocalConfig struct {
	// BasePath is the user-chosen target folder. Empty means "not chosen",
	// which routes every write to FallbackPath.
	BasePath string `yaml:"base_path" mapstructure:"base_path"`
	// FallbackPath receives writes when the base folder is unset or
	// unwritable. Defaults to the user's download directory.
	FallbackPath string      `yaml:"fallback_path" mapstructure:"fallback_path"`
	Permissions  os.FileMode `yaml:"permissions" mapstructure:"permissions"`
}

// S3Config for Amazon S3 storage
type S3Config struct {
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `yaml:"account_name" mapstructure:"account_name"`
	AccountKey    string `yaml:"account_key" mapstructure:"account_key"`
	ContainerName string `yaml:"container_name" mapstructure:"container_name"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	CredentialsPath string `yaml:"credentials_path" mapstructure:"credentials_path"`
	ProjectID       string `yaml:"project_id" mapstructure:"project_id"`
}

// StorageFilter for listing stored snapshots
type StorageFilter struct {
	Prefix   string
	MaxItems int
}

// Enums and constants

type SnapshotStatus string

const (
	SnapshotStatusCreating  SnapshotStatus = "CREATING"
	SnapshotStatusCompleted SnapshotStatus = "COMPLETED"
	SnapshotStatusFailed    SnapshotStatus = "FAILED"
	SnapshotStatusCorrupted SnapshotStatus = "CORRUPTED"
)

type CompressionType string

const (
	CompressionTypeNone CompressionType = "NONE"
	CompressionTypeGzip CompressionType = "GZIP"
	CompressionTypeLZ4  CompressionType = "LZ4"
	CompressionTypeZstd CompressionType = "ZSTD"
)

type StorageProviderType string

const (
	StorageProviderLocal StorageProviderType = "LOCAL"
	StorageProviderS3    StorageProviderType = "S3"
	StorageProviderAzure StorageProviderType = "AZURE"
	StorageProviderGCS   StorageProviderType = "GCS"
)

func isValidCompressionType(ct CompressionType) bool {
	switch ct {
	case CompressionTypeNone, CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd:
		return true
	default:
		return false
	}
}

func isValidStorageProviderType(provider StorageProviderType) bool {
	switch provider {
	case StorageProviderLocal, StorageProviderS3, StorageProviderAzure, StorageProviderGCS:
		return true
	default:
		return false
	}
}
