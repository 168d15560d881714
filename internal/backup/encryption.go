package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	saltSize         = 32
	keySize          = 32
)

// EncryptionConfig controls snapshot encryption. KeySource selects where the
// AES-256 key comes from: "env" (hex key in KeyEnvVar), "file" (raw key in
// KeyPath) or "passphrase" (PBKDF2-derived from Passphrase).
type EncryptionConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	KeySource  string `yaml:"key_source" mapstructure:"key_source"`
	KeyEnvVar  string `yaml:"key_env_var" mapstructure:"key_env_var"`
	KeyPath    string `yaml:"key_path" mapstructure:"key_path"`
	Passphrase string `yaml:"passphrase" mapstructure:"passphrase"`
}

// EncryptionStats contains statistics about an encryption operation
type EncryptionStats struct {
	OriginalSize  int64         `json:"original_size"`
	EncryptedSize int64         `json:"encrypted_size"`
	Algorithm     string        `json:"algorithm"`
	KeyDerivation string        `json:"key_derivation"`
	Duration      time.Duration `json:"duration"`
}

// EncryptionManager encrypts snapshot payloads with AES-256-GCM. In
// passphrase mode the random salt is prepended to the ciphertext so a
// snapshot can be decrypted with nothing but the passphrase.
type EncryptionManager struct {
	config *EncryptionConfig
}

// NewEncryptionManager creates a new encryption manager
func NewEncryptionManager(config *EncryptionConfig) *EncryptionManager {
	if config == nil {
		config = &EncryptionConfig{}
	}
	return &EncryptionManager{
		config: config,
	}
}

// Encrypt encrypts data using AES-256-GCM
func (em *EncryptionManager) Encrypt(data []byte) ([]byte, *EncryptionStats, error) {
	if !em.config.Enabled {
		return data, &EncryptionStats{
			OriginalSize:  int64(len(data)),
			EncryptedSize: int64(len(data)),
			Algorithm:     "NONE",
		}, nil
	}

	start := time.Now()

	var salt []byte
	var key []byte
	var err error

	if em.config.KeySource == "passphrase" {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, nil, NewEncryptionError("failed to generate salt", err)
		}
		key = DeriveKeyFromPassphrase(em.config.Passphrase, salt)
	} else {
		key, err = em.loadKey()
		if err != nil {
			return nil, nil, err
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, NewEncryptionError("failed to create AES cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, NewEncryptionError("failed to create GCM cipher", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, NewEncryptionError("failed to generate nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	if salt != nil {
		ciphertext = append(salt, ciphertext...)
	}

	stats := &EncryptionStats{
		OriginalSize:  int64(len(data)),
		EncryptedSize: int64(len(ciphertext)),
		Algorithm:     "AES-256-GCM",
		KeyDerivation: em.config.KeySource,
		Duration:      time.Since(start),
	}

	return ciphertext, stats, nil
}

// Decrypt decrypts data using AES-256-GCM
func (em *EncryptionManager) Decrypt(encryptedData []byte) ([]byte, error) {
	if !em.config.Enabled {
		return encryptedData, nil
	}

	var key []byte
	var err error

	if em.config.KeySource == "passphrase" {
		if len(encryptedData) < saltSize {
			return nil, NewEncryptionError("encrypted data too short", nil)
		}
		key = DeriveKeyFromPassphrase(em.config.Passphrase, encryptedData[:saltSize])
		encryptedData = encryptedData[saltSize:]
	} else {
		key, err = em.loadKey()
		if err != nil {
			return nil, err
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewEncryptionError("failed to create AES cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewEncryptionError("failed to create GCM cipher", err)
	}

	nonceSize := gcm.NonceSize()
	if len(encryptedData) < nonceSize {
		return nil, NewEncryptionError("encrypted data too short", nil)
	}

	nonce, ciphertext := encryptedData[:nonceSize], encryptedData[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, NewEncryptionError("failed to decrypt data", err)
	}

	return plaintext, nil
}

// IsEnabled returns whether encryption is enabled
func (em *EncryptionManager) IsEnabled() bool {
	return em.config.Enabled
}

// GetAlgorithm returns the encryption algorithm being used
func (em *EncryptionManager) GetAlgorithm() string {
	if !em.config.Enabled {
		return "NONE"
	}
	return "AES-256-GCM"
}

func (em *EncryptionManager) loadKey() ([]byte, error) {
	switch em.config.KeySource {
	case "env":
		return LoadKeyFromEnv(em.config.KeyEnvVar)
	case "file":
		return LoadKeyFromFile(em.config.KeyPath)
	default:
		return nil, NewEncryptionError(fmt.Sprintf("invalid key source: %s", em.config.KeySource), nil)
	}
}

// DeriveKeyFromPassphrase derives an AES-256 key from a passphrase using
// PBKDF2 with SHA-256
func DeriveKeyFromPassphrase(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
}

// GenerateKey generates a new 256-bit encryption key
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, NewEncryptionError("failed to generate encryption key", err)
	}
	return key, nil
}

// SaveKeyToFile saves an encryption key to a file with restricted permissions
func SaveKeyToFile(key []byte, path string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if err := os.WriteFile(path, key, 0600); err != nil {
		return NewEncryptionError("failed to save key to file", err)
	}

	return nil
}

// LoadKeyFromFile loads an encryption key from a file
func LoadKeyFromFile(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, NewEncryptionError("failed to read key from file", err)
	}

	if len(key) != keySize {
		return nil, NewEncryptionError("key file must contain 32 bytes for AES-256", nil)
	}

	return key, nil
}

// LoadKeyFromEnv loads a hex-encoded encryption key from an environment variable
func LoadKeyFromEnv(envVar string) ([]byte, error) {
	hexKey := os.Getenv(envVar)
	if hexKey == "" {
		return nil, NewEncryptionError(fmt.Sprintf("environment variable %s not set", envVar), nil)
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, NewEncryptionError("failed to decode hex key from environment variable", err)
	}

	if len(key) != keySize {
		return nil, NewEncryptionError("key from environment variable must be 32 bytes for AES-256", nil)
	}

	return key, nil
}

// ValidateKey validates that a key is suitable for AES-256
func ValidateKey(key []byte) error {
	if len(key) != keySize {
		return NewEncryptionError("key must be 32 bytes for AES-256", nil)
	}

	allZeros := true
	allOnes := true
	for _, b := range key {
		if b != 0 {
			allZeros = false
		}
		if b != 0xFF {
			allOnes = false
		}
	}

	if allZeros {
		return NewEncryptionError("key cannot be all zeros", nil)
	}
	if allOnes {
		return NewEncryptionError("key cannot be all ones", nil)
	}

	return nil
}
