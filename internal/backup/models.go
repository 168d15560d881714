package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"empresa-sync/internal/store"
)

// NewSnapshot creates an empty snapshot with every known table present and
// the schema version stamped. CriadoEm is the export wall-clock time in
// ISO-8601.
func NewSnapshot(now time.Time) *Snapshot {
	s := &Snapshot{
		Versao:   SchemaVersion,
		CriadoEm: now.UTC().Format(time.RFC3339),
		Tabelas:  make(map[string][]store.Row, len(AllTables)),
		Contagem: make(map[string]int, len(AllTables)),
	}
	for _, table := range AllTables {
		s.Tabelas[table] = []store.Row{}
		s.Contagem[table] = 0
	}
	return s
}

// SetTable records a table's rows and count in the snapshot
func (s *Snapshot) SetTable(table string, rows []store.Row) {
	if rows == nil {
		rows = []store.Row{}
	}
	s.Tabelas[table] = rows
	s.Contagem[table] = len(rows)
}

// TotalRows returns the sum of all table counts
func (s *Snapshot) TotalRows() int {
	total := 0
	for _, count := range s.Contagem {
		total += count
	}
	return total
}

// ToJSON serializes the snapshot to the wire format
func (s *Snapshot) ToJSON() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, NewValidationError("failed to marshal snapshot JSON", err)
	}
	return data, nil
}

// ToJSON serializes the SnapshotMetadata
func (sm *SnapshotMetadata) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(sm, "", "  ")
	if err != nil {
		return nil, NewValidationError("failed to marshal snapshot metadata JSON", err)
	}
	return data, nil
}

// FromJSON deserializes JSON data into SnapshotMetadata
func (sm *SnapshotMetadata) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, sm); err != nil {
		return NewValidationError("failed to unmarshal snapshot metadata JSON", err)
	}
	return sm.Validate()
}

// Validate validates the SnapshotMetadata struct
func (sm *SnapshotMetadata) Validate() error {
	var errors ValidationErrors

	if sm.ID == "" {
		errors.Add("id", "snapshot ID is required", sm.ID)
	}

	if sm.CreatedAt.IsZero() {
		errors.Add("created_at", "creation timestamp is required", sm.CreatedAt)
	}

	if sm.Size < 0 {
		errors.Add("size", "snapshot size cannot be negative", sm.Size)
	}

	if sm.CompressedSize < 0 {
		errors.Add("compressed_size", "compressed size cannot be negative", sm.CompressedSize)
	}

	if sm.CompressionType != "" && !isValidCompressionType(sm.CompressionType) {
		errors.Add("compression_type", "invalid compression type", sm.CompressionType)
	}

	if sm.Checksum == "" {
		errors.Add("checksum", "snapshot checksum is required", sm.Checksum)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// GenerateSnapshotID generates a unique snapshot ID with a sortable
// timestamp prefix
func GenerateSnapshotID() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	shortUUID := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("snapshot-%s-%s", timestamp, shortUUID)
}

// CalculateDataChecksum calculates a SHA-256 checksum for stored snapshot
// bytes
func CalculateDataChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// NilIDFilter is the tautological "id not equal to the nil UUID" condition
// used to express an unconditional bulk delete; the store refuses deletes
// without a filter clause.
func NilIDFilter() store.Filter {
	return store.Filter{
		Column:   ConflictKey,
		Operator: "neq",
		Value:    uuid.Nil.String(),
	}
}
