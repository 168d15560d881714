package backup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"empresa-sync/internal/logging"
)

// LocalStorageProvider stores snapshots on the local file system. The user's
// chosen folder is preferred; when it is unset or fails a write preflight the
// provider silently falls back to the fallback directory so an export never
// fails on folder problems alone.
type LocalStorageProvider struct {
	basePath     string
	fallbackPath string
	permissions  os.FileMode
	logger       *logging.Logger
}

// NewLocalStorageProvider creates a new LocalStorageProvider instance
func NewLocalStorageProvider(config *LocalConfig, logger *logging.Logger) (*LocalStorageProvider, error) {
	if config == nil {
		return nil, NewValidationError("local storage configuration is required", nil)
	}
	if config.FallbackPath == "" {
		return nil, NewValidationError("local storage fallback path is required", nil)
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	permissions := config.Permissions
	if permissions == 0 {
		permissions = 0755
	}

	provider := &LocalStorageProvider{
		basePath:     config.BasePath,
		fallbackPath: config.FallbackPath,
		permissions:  permissions,
		logger:       logger,
	}

	if err := os.MkdirAll(provider.fallbackPath, permissions); err != nil {
		return nil, NewStorageError("failed to create fallback directory", err)
	}

	return provider, nil
}

// Store saves a snapshot payload and its metadata sidecar. Writes land in the
// chosen folder when it passes a write preflight, otherwise in the fallback
// directory. Metadata records where the snapshot actually went.
func (lsp *LocalStorageProvider) Store(ctx context.Context, metadata *SnapshotMetadata, data []byte) error {
	if metadata == nil {
		return NewValidationError("snapshot metadata cannot be nil", nil)
	}
	if err := metadata.Validate(); err != nil {
		return NewValidationError("invalid snapshot metadata", err)
	}

	targetDir, usedFallback := lsp.resolveTargetDir()
	if usedFallback && lsp.basePath != "" {
		lsp.logger.Warnf("chosen folder %s is not writable, saving to %s instead", lsp.basePath, lsp.fallbackPath)
	}

	snapshotDir := filepath.Join(targetDir, sanitizeSnapshotID(metadata.ID))
	if err := os.MkdirAll(snapshotDir, lsp.permissions); err != nil {
		return NewStorageError("failed to create snapshot directory", err)
	}

	metadata.StorageLocation = snapshotDir

	dataPath := filepath.Join(snapshotDir, DataFileName(metadata))
	if err := os.WriteFile(dataPath, data, 0644); err != nil {
		return NewStorageError("failed to write snapshot file", err)
	}

	metadataJSON, err := metadata.ToJSON()
	if err != nil {
		return NewStorageError("failed to serialize metadata", err)
	}
	metadataPath := filepath.Join(snapshotDir, "metadata.json")
	if err := os.WriteFile(metadataPath, metadataJSON, 0644); err != nil {
		return NewStorageError("failed to write metadata file", err)
	}

	return nil
}

// Retrieve loads a snapshot payload and metadata, checking the chosen folder
// first and the fallback directory second.
func (lsp *LocalStorageProvider) Retrieve(ctx context.Context, snapshotID string) ([]byte, *SnapshotMetadata, error) {
	if snapshotID == "" {
		return nil, nil, NewValidationError("snapshot ID cannot be empty", nil)
	}

	snapshotDir, err := lsp.findSnapshotDir(snapshotID)
	if err != nil {
		return nil, nil, err
	}

	metadata, err := lsp.loadMetadata(filepath.Join(snapshotDir, "metadata.json"))
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(filepath.Join(snapshotDir, DataFileName(metadata)))
	if err != nil {
		return nil, nil, NewStorageError("failed to read snapshot file", err)
	}

	return data, metadata, nil
}

// Delete removes a stored snapshot from whichever directory holds it
func (lsp *LocalStorageProvider) Delete(ctx context.Context, snapshotID string) error {
	if snapshotID == "" {
		return NewValidationError("snapshot ID cannot be empty", nil)
	}

	snapshotDir, err := lsp.findSnapshotDir(snapshotID)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(snapshotDir); err != nil {
		return NewStorageError("failed to delete snapshot directory", err)
	}

	return nil
}

// List returns metadata for stored snapshots matching the filter, scanning
// both the chosen folder and the fallback directory.
func (lsp *LocalStorageProvider) List(ctx context.Context, filter StorageFilter) ([]*SnapshotMetadata, error) {
	var snapshots []*SnapshotMetadata
	seen := make(map[string]bool)

	for _, root := range lsp.searchRoots() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() || path == root {
				return nil
			}

			metadataPath := filepath.Join(path, "metadata.json")
			if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
				return nil
			}

			metadata, err := lsp.loadMetadata(metadataPath)
			if err != nil {
				// Skip unreadable entries, keep listing the rest
				return nil
			}

			if seen[metadata.ID] {
				return nil
			}
			seen[metadata.ID] = true

			if matchesStorageFilter(metadata, filter) {
				snapshots = append(snapshots, metadata)
			}

			if filter.MaxItems > 0 && len(snapshots) >= filter.MaxItems {
				return filepath.SkipAll
			}

			return nil
		})
		if err != nil {
			return nil, NewStorageError("failed to list snapshots", err)
		}
		if filter.MaxItems > 0 && len(snapshots) >= filter.MaxItems {
			break
		}
	}

	return snapshots, nil
}

// GetMetadata retrieves metadata for a specific snapshot
func (lsp *LocalStorageProvider) GetMetadata(ctx context.Context, snapshotID string) (*SnapshotMetadata, error) {
	if snapshotID == "" {
		return nil, NewValidationError("snapshot ID cannot be empty", nil)
	}

	snapshotDir, err := lsp.findSnapshotDir(snapshotID)
	if err != nil {
		return nil, err
	}

	return lsp.loadMetadata(filepath.Join(snapshotDir, "metadata.json"))
}

// HealthCheck verifies that at least one target directory is writable. The
// fallback directory is created on demand, the same as a real write would.
func (lsp *LocalStorageProvider) HealthCheck(ctx context.Context) error {
	_, usedFallback := lsp.resolveTargetDir()
	if !usedFallback {
		return nil
	}
	if err := os.MkdirAll(lsp.fallbackPath, lsp.permissions); err != nil {
		return NewStorageError("neither the chosen folder nor the fallback directory is writable", err)
	}
	if !isWritableDir(lsp.fallbackPath) {
		return NewStorageError("neither the chosen folder nor the fallback directory is writable", nil)
	}
	return nil
}

// TargetDir returns the directory the next write would land in and whether
// that is the fallback directory.
func (lsp *LocalStorageProvider) TargetDir() (string, bool) {
	return lsp.resolveTargetDir()
}

// resolveTargetDir picks the chosen folder when it exists and passes a write
// preflight, the fallback directory otherwise.
func (lsp *LocalStorageProvider) resolveTargetDir() (string, bool) {
	if lsp.basePath == "" {
		return lsp.fallbackPath, true
	}
	if err := os.MkdirAll(lsp.basePath, lsp.permissions); err != nil {
		return lsp.fallbackPath, true
	}
	if !isWritableDir(lsp.basePath) {
		return lsp.fallbackPath, true
	}
	return lsp.basePath, false
}

// findSnapshotDir locates a snapshot's directory across both roots
func (lsp *LocalStorageProvider) findSnapshotDir(snapshotID string) (string, error) {
	id := sanitizeSnapshotID(snapshotID)
	for _, root := range lsp.searchRoots() {
		dir := filepath.Join(root, id)
		if _, err := os.Stat(filepath.Join(dir, "metadata.json")); err == nil {
			return dir, nil
		}
	}
	return "", NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), nil)
}

func (lsp *LocalStorageProvider) searchRoots() []string {
	roots := make([]string, 0, 2)
	if lsp.basePath != "" {
		if _, err := os.Stat(lsp.basePath); err == nil {
			roots = append(roots, lsp.basePath)
		}
	}
	roots = append(roots, lsp.fallbackPath)
	return roots
}

func (lsp *LocalStorageProvider) loadMetadata(path string) (*SnapshotMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewStorageError("failed to read metadata file", err)
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

// sanitizeSnapshotID removes path separators so an ID cannot escape the
// storage root.
func sanitizeSnapshotID(snapshotID string) string {
	sanitized := strings.ReplaceAll(snapshotID, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	sanitized = strings.ReplaceAll(sanitized, "..", "_")
	return sanitized
}

// isWritableDir checks a directory by writing a throwaway file
func isWritableDir(dir string) bool {
	marker := filepath.Join(dir, ".write_check")
	if err := os.WriteFile(marker, []byte("ok"), 0644); err != nil {
		return false
	}
	os.Remove(marker)
	return true
}

// matchesStorageFilter checks if metadata matches the given filter
func matchesStorageFilter(metadata *SnapshotMetadata, filter StorageFilter) bool {
	if filter.Prefix != "" && !strings.HasPrefix(metadata.ID, filter.Prefix) {
		return false
	}
	return true
}
