package backup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshotDoc() map[string]interface{} {
	tables := make(map[string]interface{}, len(AllTables))
	for _, table := range AllTables {
		tables[table] = []interface{}{}
	}
	return map[string]interface{}{
		"versao":   float64(SchemaVersion),
		"criadoEm": "2025-09-01T12:00:00Z",
		"tabelas":  tables,
	}
}

func TestSnapshotValidator_AcceptsWellFormedDocument(t *testing.T) {
	doc := validSnapshotDoc()
	doc["tabelas"].(map[string]interface{})["empresas"] = []interface{}{
		map[string]interface{}{"id": "e1", "nome": "Empresa Um"},
		map[string]interface{}{"id": "e2", "nome": "Empresa Dois"},
	}

	snapshot, err := NewSnapshotValidator().Validate(doc)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, snapshot.Versao)
	assert.Equal(t, "2025-09-01T12:00:00Z", snapshot.CriadoEm)
	assert.Len(t, snapshot.Tabelas, len(AllTables))
	assert.Equal(t, 2, snapshot.Contagem["empresas"])
	assert.Equal(t, 0, snapshot.Contagem["logs"])
}

func TestSnapshotValidator_AcceptsOwnExport(t *testing.T) {
	// An export round-tripped through JSON must validate.
	snapshot := NewSnapshot(time.Now())
	data, err := snapshot.ToJSON()
	require.NoError(t, err)

	parsed, err := NewSnapshotValidator().ValidateJSON(data)
	require.NoError(t, err)
	assert.Len(t, parsed.Tabelas, len(AllTables))
}

func TestSnapshotValidator_RejectsNonObject(t *testing.T) {
	validator := NewSnapshotValidator()

	for _, value := range []interface{}{nil, "text", float64(7), []interface{}{}} {
		_, err := validator.Validate(value)
		assert.Error(t, err, "value %v should be rejected", value)
	}
}

func TestSnapshotValidator_RejectsWrongVersion(t *testing.T) {
	doc := validSnapshotDoc()
	doc["versao"] = float64(2)

	_, err := NewSnapshotValidator().Validate(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestSnapshotValidator_RejectsStringVersion(t *testing.T) {
	doc := validSnapshotDoc()
	doc["versao"] = "1"

	_, err := NewSnapshotValidator().Validate(doc)
	assert.Error(t, err)
}

func TestSnapshotValidator_RejectsMissingVersion(t *testing.T) {
	doc := validSnapshotDoc()
	delete(doc, "versao")

	_, err := NewSnapshotValidator().Validate(doc)
	assert.Error(t, err)
}

func TestSnapshotValidator_RejectsMissingTabelas(t *testing.T) {
	doc := validSnapshotDoc()
	delete(doc, "tabelas")

	_, err := NewSnapshotValidator().Validate(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tabelas")
}

func TestSnapshotValidator_RejectsMissingTable(t *testing.T) {
	doc := validSnapshotDoc()
	delete(doc["tabelas"].(map[string]interface{}), "lixeira")

	_, err := NewSnapshotValidator().Validate(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lixeira")
}

func TestSnapshotValidator_RejectsNonArrayTable(t *testing.T) {
	doc := validSnapshotDoc()
	doc["tabelas"].(map[string]interface{})["usuarios"] = map[string]interface{}{"id": "u1"}

	_, err := NewSnapshotValidator().Validate(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usuarios")
}

func TestSnapshotValidator_RejectsNullTable(t *testing.T) {
	doc := validSnapshotDoc()
	doc["tabelas"].(map[string]interface{})["rets"] = nil

	_, err := NewSnapshotValidator().Validate(doc)
	assert.Error(t, err)
}

func TestSnapshotValidator_RejectsNonObjectRow(t *testing.T) {
	doc := validSnapshotDoc()
	doc["tabelas"].(map[string]interface{})["servicos"] = []interface{}{"not a row"}

	_, err := NewSnapshotValidator().Validate(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "servicos")
}

func TestSnapshotValidator_IgnoresUnknownTables(t *testing.T) {
	doc := validSnapshotDoc()
	doc["tabelas"].(map[string]interface{})["extra"] = []interface{}{
		map[string]interface{}{"id": "x"},
	}

	snapshot, err := NewSnapshotValidator().Validate(doc)
	require.NoError(t, err)
	_, carried := snapshot.Tabelas["extra"]
	assert.False(t, carried)
}

func TestSnapshotValidator_ValidateJSON_RejectsMalformedInput(t *testing.T) {
	_, err := NewSnapshotValidator().ValidateJSON([]byte("{not json"))
	assert.Error(t, err)
}

func TestSnapshotValidator_ValidateJSON_Document(t *testing.T) {
	data, err := json.Marshal(validSnapshotDoc())
	require.NoError(t, err)

	snapshot, err := NewSnapshotValidator().ValidateJSON(data)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, snapshot.Versao)
}
