package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Storage backend identifiers.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// StorageConfig selects and parameterizes the task storage backend.
type StorageConfig struct {
	// Backend is "json" or "sqlite".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Dir is the data directory holding task files, the archive,
	// templates, attachments, and the context registry.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// PageSize is the default page size for list operations.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// HistoryConfig controls the undo/redo operation log.
type HistoryConfig struct {
	// Limit is the maximum undo depth; older entries are evicted.
	Limit int `mapstructure:"limit" yaml:"limit"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
}

// DefaultDataDir returns the default data directory, ~/.tix.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tix"
	}
	return filepath.Join(home, ".tix")
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/tix/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "tix", "config.yaml")
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Storage: StorageConfig{
			Backend:  BackendJSON,
			Dir:      DefaultDataDir(),
			PageSize: 20,
		},
		History: HistoryConfig{
			Limit: 10,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("storage.backend", BackendJSON)
	v.SetDefault("storage.dir", DefaultDataDir())
	v.SetDefault("storage.page_size", 20)
	v.SetDefault("history.limit", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	switch cfg.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.PageSize <= 0 {
		cfg.Storage.PageSize = 20
	}
	if cfg.History.Limit <= 0 {
		cfg.History.Limit = 10
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("storage", cfg.Storage)
	v.Set("history", cfg.History)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
