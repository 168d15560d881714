package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"empresa-sync/internal/backup"
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "EMPRESA_SYNC"

// Config is the full application configuration
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Identity IdentityConfig `yaml:"identity" mapstructure:"identity"`
	Backup   BackupConfig   `yaml:"backup" mapstructure:"backup"`

	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	LogFile  string `yaml:"log_file" mapstructure:"log_file"`
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
	Quiet    bool   `yaml:"quiet" mapstructure:"quiet"`
}

// StoreConfig connects the data store REST API
type StoreConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	Token   string        `yaml:"token" mapstructure:"token"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// IdentityConfig connects the identity provider admin API
type IdentityConfig struct {
	URL        string        `yaml:"url" mapstructure:"url"`
	ServiceKey string        `yaml:"service_key" mapstructure:"service_key"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BackupConfig controls snapshot creation and storage
type BackupConfig struct {
	Storage     backup.StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Encryption  backup.EncryptionConfig `yaml:"encryption" mapstructure:"encryption"`
	Compression string                  `yaml:"compression" mapstructure:"compression"`
	Keep        int                     `yaml:"keep" mapstructure:"keep"`
}

// SetDefaults fills in defaults for unset fields
func (c *Config) SetDefaults() {
	if c.Store.Timeout == 0 {
		c.Store.Timeout = 30 * time.Second
	}
	if c.Identity.Timeout == 0 {
		c.Identity.Timeout = 30 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "normal"
	}
	if c.Backup.Compression == "" {
		c.Backup.Compression = string(backup.CompressionTypeNone)
	}
	if c.Backup.Keep == 0 {
		c.Backup.Keep = 10
	}
	if c.Backup.Storage.Provider == "" {
		c.Backup.Storage.Provider = backup.StorageProviderLocal
	}
	if c.Backup.Storage.Provider == backup.StorageProviderLocal {
		if c.Backup.Storage.Local == nil {
			c.Backup.Storage.Local = &backup.LocalConfig{}
		}
		if c.Backup.Storage.Local.FallbackPath == "" {
			c.Backup.Storage.Local.FallbackPath = defaultFallbackDir()
		}
		if c.Backup.Storage.Local.Permissions == 0 {
			c.Backup.Storage.Local.Permissions = 0755
		}
	}
}

// defaultFallbackDir mirrors the download-directory fallback of the web
// client: snapshots that cannot reach the chosen folder land in the user's
// download directory.
func defaultFallbackDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./backups"
	}
	return filepath.Join(home, "Downloads", "empresa-sync")
}

// Validate checks the configuration for use against live services
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	if c.Store.APIKey == "" {
		return fmt.Errorf("store.api_key is required")
	}
	if !strings.HasPrefix(c.Store.URL, "http://") && !strings.HasPrefix(c.Store.URL, "https://") {
		return fmt.Errorf("store.url must be an http(s) URL")
	}
	if ct := backup.CompressionType(strings.ToUpper(c.Backup.Compression)); ct != backup.CompressionTypeNone &&
		ct != backup.CompressionTypeGzip && ct != backup.CompressionTypeLZ4 && ct != backup.CompressionTypeZstd {
		return fmt.Errorf("backup.compression must be one of NONE, GZIP, LZ4, ZSTD")
	}
	if c.Backup.Keep < 1 {
		return fmt.Errorf("backup.keep must be at least 1")
	}
	return c.Backup.Storage.Validate()
}

// ValidateIdentity additionally checks the fields user provisioning needs
func (c *Config) ValidateIdentity() error {
	if c.Identity.URL == "" {
		return fmt.Errorf("identity.url is required")
	}
	if c.Identity.ServiceKey == "" {
		return fmt.Errorf("identity.service_key is required")
	}
	return nil
}

// CompressionType returns the configured compression as a typed value
func (c *Config) CompressionType() backup.CompressionType {
	return backup.CompressionType(strings.ToUpper(c.Backup.Compression))
}

// Load builds the configuration from viper state (config file, environment,
// bound flags), applies defaults and validates nothing; callers validate the
// sections they use.
func Load() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	config.LoadFromEnvironment()
	config.SetDefaults()
	return config, nil
}

// LoadFromEnvironment applies well-known environment variables that override
// file settings. Credentials usually come from the environment rather than
// the config file.
func (c *Config) LoadFromEnvironment() {
	if v := os.Getenv(EnvPrefix + "_STORE_URL"); v != "" {
		c.Store.URL = v
	}
	if v := os.Getenv(EnvPrefix + "_STORE_API_KEY"); v != "" {
		c.Store.APIKey = v
	}
	if v := os.Getenv(EnvPrefix + "_STORE_TOKEN"); v != "" {
		c.Store.Token = v
	}
	if v := os.Getenv(EnvPrefix + "_IDENTITY_URL"); v != "" {
		c.Identity.URL = v
	}
	if v := os.Getenv(EnvPrefix + "_IDENTITY_SERVICE_KEY"); v != "" {
		c.Identity.ServiceKey = v
	}
	if v := os.Getenv(EnvPrefix + "_ENCRYPTION_PASSPHRASE"); v != "" {
		c.Backup.Encryption.Passphrase = v
	}
}

// WriteStarterConfig writes a commented starter configuration file
func WriteStarterConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	starter := map[string]interface{}{
		"store": map[string]interface{}{
			"url":     "https://your-project.example.com",
			"api_key": "",
			"timeout": "30s",
		},
		"identity": map[string]interface{}{
			"url":         "https://your-project.example.com",
			"service_key": "",
			"timeout":     "30s",
		},
		"backup": map[string]interface{}{
			"compression": "GZIP",
			"keep":        10,
			"storage": map[string]interface{}{
				"provider": "LOCAL",
				"local": map[string]interface{}{
					"base_path":     "",
					"fallback_path": defaultFallbackDir(),
				},
			},
			"encryption": map[string]interface{}{
				"enabled":    false,
				"key_source": "passphrase",
			},
		},
		"log_level": "normal",
	}

	data, err := yaml.Marshal(starter)
	if err != nil {
		return fmt.Errorf("failed to marshal starter configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}
