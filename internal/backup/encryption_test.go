package backup

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptionManager_Disabled_PassesThrough(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: false})
	data := []byte("snapshot payload")

	encrypted, stats, err := em.Encrypt(data)
	require.NoError(t, err)
	assert.Equal(t, data, encrypted)
	assert.Equal(t, "NONE", stats.Algorithm)

	decrypted, err := em.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, data, decrypted)
}

func TestEncryptionManager_PassphraseRoundTrip(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{
		Enabled:    true,
		KeySource:  "passphrase",
		Passphrase: "correct horse battery staple",
	})
	data := []byte("snapshot payload")

	encrypted, stats, err := em.Encrypt(data)
	require.NoError(t, err)
	assert.NotEqual(t, data, encrypted)
	assert.Equal(t, "AES-256-GCM", stats.Algorithm)
	assert.Greater(t, len(encrypted), len(data))

	decrypted, err := em.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, data, decrypted)
}

func TestEncryptionManager_PassphraseSelfContained(t *testing.T) {
	// A fresh manager with only the passphrase must decrypt: the salt
	// travels inside the ciphertext.
	config := &EncryptionConfig{Enabled: true, KeySource: "passphrase", Passphrase: "s3cret"}
	encrypted, _, err := NewEncryptionManager(config).Encrypt([]byte("payload"))
	require.NoError(t, err)

	fresh := NewEncryptionManager(&EncryptionConfig{Enabled: true, KeySource: "passphrase", Passphrase: "s3cret"})
	decrypted, err := fresh.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), decrypted)
}

func TestEncryptionManager_WrongPassphraseFails(t *testing.T) {
	encrypted, _, err := NewEncryptionManager(&EncryptionConfig{
		Enabled: true, KeySource: "passphrase", Passphrase: "right",
	}).Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = NewEncryptionManager(&EncryptionConfig{
		Enabled: true, KeySource: "passphrase", Passphrase: "wrong",
	}).Decrypt(encrypted)
	assert.Error(t, err)
}

func TestEncryptionManager_FileKeyRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "snapshot.key")
	require.NoError(t, SaveKeyToFile(key, keyPath))

	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, KeySource: "file", KeyPath: keyPath})

	encrypted, _, err := em.Encrypt([]byte("payload"))
	require.NoError(t, err)

	decrypted, err := em.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), decrypted)
}

func TestEncryptionManager_EnvKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	t.Setenv("SNAPSHOT_TEST_KEY", hex.EncodeToString(key))

	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, KeySource: "env", KeyEnvVar: "SNAPSHOT_TEST_KEY"})

	encrypted, _, err := em.Encrypt([]byte("payload"))
	require.NoError(t, err)

	decrypted, err := em.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), decrypted)
}

func TestEncryptionManager_InvalidKeySource(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, KeySource: "vault"})

	_, _, err := em.Encrypt([]byte("payload"))
	assert.Error(t, err)
}

func TestEncryptionManager_Decrypt_TruncatedInput(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{
		Enabled: true, KeySource: "passphrase", Passphrase: "s3cret",
	})

	_, err := em.Decrypt([]byte("short"))
	assert.Error(t, err)
}

func TestValidateKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	assert.NoError(t, ValidateKey(key))

	assert.Error(t, ValidateKey(make([]byte, 16)))
	assert.Error(t, ValidateKey(make([]byte, 32)))

	ones := make([]byte, 32)
	for i := range ones {
		ones[i] = 0xFF
	}
	assert.Error(t, ValidateKey(ones))
}

func TestDeriveKeyFromPassphrase_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")

	first := DeriveKeyFromPassphrase("passphrase", salt)
	second := DeriveKeyFromPassphrase("passphrase", salt)
	assert.Equal(t, first, second)
	assert.Len(t, first, 32)

	assert.NotEqual(t, first, DeriveKeyFromPassphrase("other", salt))
}
