package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for the sync tool. The engine reads
// it at configure-time; it never owns or rewrites it mid-run.
type Config struct {
	// Remote server
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`

	// Library provider helper binary (exports assets from the native
	// photo library)
	HelperBinary string `yaml:"helper_binary"`

	// What to sync
	SyncImages         bool `yaml:"sync_images"`
	SyncVideos         bool `yaml:"sync_videos"`
	IncludeScreenshots bool `yaml:"include_screenshots"`

	// Pipeline tuning
	MaxRetries     int `yaml:"max_retries"`      // attempts before an asset is parked as failed
	DedupChunkSize int `yaml:"dedup_chunk_size"` // ids per bulk existence check

	// Timeouts, seconds
	RequestTimeout int `yaml:"request_timeout"`
	UploadTimeout  int `yaml:"upload_timeout"`
	ExportTimeout  int `yaml:"export_timeout"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:          "",
		APIKey:             "",
		HelperBinary:       "photo-exporter",
		SyncImages:         true,
		SyncVideos:         true,
		IncludeScreenshots: false,
		MaxRetries:         3,
		DedupChunkSize:     500,
		RequestTimeout:     10,
		UploadTimeout:      300,
		ExportTimeout:      120,
		LogLevel:           "info",
	}
}

// Load reads configuration from path, applying defaults for anything the
// file leaves unset. A missing file is not an error. The IMMICH_API_URL
// and IMMICH_API_KEY environment variables override the file so
// credentials can stay out of it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if url := strings.TrimSpace(os.Getenv("IMMICH_API_URL")); url != "" {
		cfg.ServerURL = url
	}
	if key := strings.TrimSpace(os.Getenv("IMMICH_API_KEY")); key != "" {
		cfg.APIKey = key
	}

	// Repair nonsense values rather than failing: the rest of the tool
	// depends on these being usable.
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DedupChunkSize <= 0 {
		cfg.DedupChunkSize = 500
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 300
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = 120
	}
	if cfg.HelperBinary == "" {
		cfg.HelperBinary = "photo-exporter"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Save persists the configuration to path, creating the directory if
// needed
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ServerConfigured reports whether both the URL and API key are present
func (c *Config) ServerConfigured() bool {
	return strings.TrimSpace(c.ServerURL) != "" && strings.TrimSpace(c.APIKey) != ""
}
