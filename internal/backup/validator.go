package backup

import (
	"encoding/json"
	"fmt"

	"empresa-sync/internal/store"
)

// SnapshotValidator structurally validates untrusted snapshot documents
// before they are allowed near a restore. Pure: no I/O, no side effects.
type SnapshotValidator struct{}

// NewSnapshotValidator creates a new snapshot validator
func NewSnapshotValidator() *SnapshotValidator {
	return &SnapshotValidator{}
}

// Validate accepts an arbitrary decoded value (for example the result of
// unmarshaling a user-supplied file into interface{}) and returns the typed
// snapshot, or a rejection naming the first structural problem found.
//
// Checks run in order and short-circuit:
//  1. the value is a non-null JSON object
//  2. versao equals the supported schema version
//  3. tabelas exists and is an object
//  4. every known table maps to an array (empty is fine)
func (v *SnapshotValidator) Validate(value interface{}) (*Snapshot, error) {
	doc, ok := value.(map[string]interface{})
	if !ok || doc == nil {
		return nil, NewValidationError("snapshot must be a JSON object", nil)
	}

	version, ok := numberField(doc["versao"])
	if !ok || version != SchemaVersion {
		return nil, NewValidationError(
			fmt.Sprintf("unsupported snapshot version: expected %d, got %v", SchemaVersion, doc["versao"]), nil)
	}

	rawTables, ok := doc["tabelas"].(map[string]interface{})
	if !ok || rawTables == nil {
		return nil, NewValidationError("snapshot is missing the tabelas object", nil)
	}

	tables := make(map[string][]store.Row, len(AllTables))
	for _, table := range AllTables {
		rawRows, exists := rawTables[table]
		if !exists {
			return nil, NewValidationError(
				fmt.Sprintf("snapshot is missing table %s", table), nil)
		}

		rowList, ok := rawRows.([]interface{})
		if !ok {
			return nil, NewValidationError(
				fmt.Sprintf("table %s must be an array", table), nil)
		}

		rows := make([]store.Row, 0, len(rowList))
		for _, rawRow := range rowList {
			if row, ok := rawRow.(map[string]interface{}); ok {
				rows = append(rows, store.Row(row))
			} else {
				return nil, NewValidationError(
					fmt.Sprintf("table %s contains a non-object row", table), nil)
			}
		}
		tables[table] = rows
	}

	snapshot := &Snapshot{
		Versao:   SchemaVersion,
		Tabelas:  tables,
		Contagem: make(map[string]int, len(AllTables)),
	}
	if createdAt, ok := doc["criadoEm"].(string); ok {
		snapshot.CriadoEm = createdAt
	}
	for table, rows := range tables {
		snapshot.Contagem[table] = len(rows)
	}

	return snapshot, nil
}

// ValidateJSON decodes raw bytes and validates the result
func (v *SnapshotValidator) ValidateJSON(data []byte) (*Snapshot, error) {
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, NewValidationError("snapshot is not valid JSON", err)
	}
	return v.Validate(value)
}

// numberField extracts an integer from the decoded JSON value. encoding/json
// decodes numbers as float64 when the target is interface{}.
func numberField(value interface{}) (int, bool) {
	switch n := value.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
