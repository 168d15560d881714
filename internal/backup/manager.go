package backup

import (
	"context"
	"sort"
	"time"

	apperrors "empresa-sync/internal/errors"
	"empresa-sync/internal/logging"
	"empresa-sync/internal/store"
)

// Manager orchestrates the snapshot lifecycle: exporting the data store into
// a snapshot, wrapping it in the file envelope (compression, encryption,
// checksum), persisting it through a storage provider, and replaying a
// stored or on-disk snapshot back into the store.
type Manager struct {
	exporter    *Exporter
	restorer    *Restorer
	validator   *SnapshotValidator
	storage     StorageProvider
	compression *CompressionManager
	encryption  *EncryptionManager
	retry       *apperrors.RetryHandler
	logger      *logging.Logger
}

// ManagerOptions bundles the collaborators a Manager needs
type ManagerOptions struct {
	TableStore store.TableStore
	Storage    StorageProvider
	Encryption *EncryptionConfig
	// Retry governs transient storage-upload failures. Defaults to the
	// standard exponential backoff.
	Retry  *apperrors.RetryHandler
	Logger *logging.Logger
}

// CreateOptions controls a snapshot export
type CreateOptions struct {
	Description string
	CreatedBy   string
	Compression CompressionType
	Progress    ProgressFunc
}

// RestoreOptions controls a snapshot restore
type RestoreOptions struct {
	DryRun   bool
	Progress ProgressFunc
}

// NewManager creates a snapshot manager
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	retry := opts.Retry
	if retry == nil {
		retry = apperrors.NewDefaultRetryHandler()
	}

	return &Manager{
		exporter:    NewExporter(opts.TableStore, logger),
		restorer:    NewRestorer(opts.TableStore, logger),
		validator:   NewSnapshotValidator(),
		storage:     opts.Storage,
		compression: NewCompressionManager(),
		encryption:  NewEncryptionManager(opts.Encryption),
		retry:       retry,
		logger:      logger,
	}
}

// CreateSnapshot exports every application table and persists the result
// through the storage provider. The checksum always covers the raw snapshot
// JSON, before compression and encryption.
func (m *Manager) CreateSnapshot(ctx context.Context, opts CreateOptions) (*SnapshotMetadata, error) {
	start := time.Now()

	snapshot := m.exporter.Export(ctx, opts.Progress)

	raw, err := snapshot.ToJSON()
	if err != nil {
		return nil, err
	}

	compressionType := opts.Compression
	if compressionType == "" {
		compressionType = CompressionTypeNone
	}

	compressed, stats, err := m.compression.Compress(raw, compressionType)
	if err != nil {
		return nil, err
	}

	payload, _, err := m.encryption.Encrypt(compressed)
	if err != nil {
		return nil, err
	}

	metadata := &SnapshotMetadata{
		ID:                GenerateSnapshotID(),
		CreatedAt:         time.Now().UTC(),
		CreatedBy:         opts.CreatedBy,
		Description:       opts.Description,
		TableCounts:       snapshot.Contagem,
		TotalRows:         snapshot.TotalRows(),
		Size:              int64(len(raw)),
		CompressedSize:    stats.CompressedSize,
		CompressionType:   compressionType,
		EncryptionEnabled: m.encryption.IsEnabled(),
		Checksum:          CalculateDataChecksum(raw),
		Status:            SnapshotStatusCompleted,
	}

	if err := m.retry.Retry(ctx, func() error {
		return m.storage.Store(ctx, metadata, payload)
	}); err != nil {
		metadata.Status = SnapshotStatusFailed
		m.logger.LogStorageOperation("storage", "store", metadata.ID, time.Since(start), err)
		return nil, err
	}

	m.logger.LogStorageOperation("storage", "store", metadata.ID, time.Since(start), nil)
	return metadata, nil
}

// LoadSnapshot retrieves a stored snapshot, unwraps the file envelope and
// validates the document.
func (m *Manager) LoadSnapshot(ctx context.Context, snapshotID string) (*Snapshot, *SnapshotMetadata, error) {
	payload, metadata, err := m.storage.Retrieve(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	decrypted, err := m.encryption.Decrypt(payload)
	if err != nil {
		return nil, nil, err
	}

	raw, err := m.compression.Decompress(decrypted, metadata.CompressionType)
	if err != nil {
		return nil, nil, err
	}

	if CalculateDataChecksum(raw) != metadata.Checksum {
		return nil, nil, NewCorruptionError("snapshot checksum verification failed", nil).
			WithContext("snapshot_id", snapshotID)
	}

	snapshot, err := m.validator.ValidateJSON(raw)
	if err != nil {
		return nil, nil, err
	}

	return snapshot, metadata, nil
}

// RestoreSnapshot replays a stored snapshot into the data store
func (m *Manager) RestoreSnapshot(ctx context.Context, snapshotID string, opts RestoreOptions) (*RestoreResult, error) {
	snapshot, _, err := m.LoadSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	return m.restore(ctx, snapshot, opts)
}

// RestoreFromData validates raw snapshot JSON and replays it into the data
// store. Used for snapshot files that never went through a storage provider.
func (m *Manager) RestoreFromData(ctx context.Context, data []byte, opts RestoreOptions) (*RestoreResult, error) {
	snapshot, err := m.validator.ValidateJSON(data)
	if err != nil {
		return nil, err
	}

	return m.restore(ctx, snapshot, opts)
}

func (m *Manager) restore(ctx context.Context, snapshot *Snapshot, opts RestoreOptions) (*RestoreResult, error) {
	if opts.DryRun {
		return dryRunResult(snapshot), nil
	}
	return m.restorer.Restore(ctx, snapshot, opts.Progress)
}

// dryRunResult reports what a restore would write without touching the store
func dryRunResult(snapshot *Snapshot) *RestoreResult {
	result := &RestoreResult{
		RowsWritten: make(map[string]int),
		DryRun:      true,
	}

	for _, table := range CriticalInsertOrder {
		result.RowsWritten[table] = len(snapshot.Tabelas[table])
		result.TablesRestored++
	}
	for _, table := range SecondaryInsertOrder {
		rows := snapshot.Tabelas[table]
		if len(rows) == 0 {
			result.TablesSkipped = append(result.TablesSkipped, table)
			continue
		}
		result.RowsWritten[table] = len(rows)
		result.TablesRestored++
	}

	return result
}

// ListSnapshots returns metadata for stored snapshots, newest first
func (m *Manager) ListSnapshots(ctx context.Context, filter StorageFilter) ([]*SnapshotMetadata, error) {
	snapshots, err := m.storage.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})

	return snapshots, nil
}

// DeleteSnapshot removes a stored snapshot
func (m *Manager) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	return m.storage.Delete(ctx, snapshotID)
}

// PruneSnapshots deletes all but the newest keep snapshots and returns the
// IDs it removed.
func (m *Manager) PruneSnapshots(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, NewValidationError("keep must be at least 1", nil)
	}

	snapshots, err := m.ListSnapshots(ctx, StorageFilter{})
	if err != nil {
		return nil, err
	}

	if len(snapshots) <= keep {
		return nil, nil
	}

	var pruned []string
	for _, metadata := range snapshots[keep:] {
		if err := m.storage.Delete(ctx, metadata.ID); err != nil {
			m.logger.Warnf("failed to prune snapshot %s: %v", metadata.ID, err)
			continue
		}
		pruned = append(pruned, metadata.ID)
	}

	return pruned, nil
}
