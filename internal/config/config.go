package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tradewire configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Storage paths
	Storage StorageConfig `yaml:"storage"`

	// AI assistant for browser recovery
	Assist AssistConfig `yaml:"assist"`

	// Submission engine settings
	Submission SubmissionConfig `yaml:"submission"`

	// Per-country channel endpoints, keyed by ISO alpha-2 code
	Countries map[string]CountryConfig `yaml:"countries"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig locates the record database, the document archive and
// the credential registry.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	ArchiveDir      string `yaml:"archive_dir"`
	CredentialsPath string `yaml:"credentials_path"`
}

// AssistConfig configures the recovery assistant.
type AssistConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// SubmissionConfig tunes the orchestrator.
type SubmissionConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent"`
	DefaultActor  string `yaml:"default_actor"`
}

// CountryConfig holds the channel endpoints for one destination country.
// Either channel may be absent when the country does not offer it.
type CountryConfig struct {
	FTP    *FTPConfig    `yaml:"ftp,omitempty"`
	Portal *PortalConfig `yaml:"portal,omitempty"`
}

// FTPConfig is the batch upload endpoint.
type FTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Passive  bool   `yaml:"passive"`
	BasePath string `yaml:"base_path"`
	Timeout  string `yaml:"timeout"`
}

// PortalConfig is the driven-browser endpoint.
type PortalConfig struct {
	BaseURL       string `yaml:"base_url"`
	LoginURL      string `yaml:"login_url"`
	Headless      bool   `yaml:"headless"`
	ScreenshotDir string `yaml:"screenshot_dir"`
	MaxRetries    int    `yaml:"max_retries"`
	SuccessMarker string `yaml:"success_marker"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "tradewire",
		Version: "1.0.0",

		Storage: StorageConfig{
			DatabasePath:    "data/tradewire.db",
			ArchiveDir:      "data/archive",
			CredentialsPath: "data/credentials.yaml",
		},

		Assist: AssistConfig{
			Enabled: true,
			Model:   "gemini-2.5-flash",
			Timeout: "60s",
		},

		Submission: SubmissionConfig{
			MaxConcurrent: 4,
			DefaultActor:  "system",
		},

		Countries: map[string]CountryConfig{
			"BB": {
				FTP: &FTPConfig{
					Host:     "ftp.customs.gov.bb",
					Port:     21,
					Passive:  true,
					BasePath: "/inbound",
					Timeout:  "30s",
				},
			},
			"JM": {
				Portal: &PortalConfig{
					BaseURL:    "https://portal.customs.gov.jm",
					LoginURL:   "https://portal.customs.gov.jm/login",
					Headless:   true,
					MaxRetries: 3,
				},
			},
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "tradewire.log",
		},
	}
}

// Load loads configuration from a YAML file. Environment overrides
// apply whether or not the file exists; running without a config file
// is the common case and secrets arrive through the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Secrets
// never live in the config file.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Assist.APIKey = key
	}
	if key := os.Getenv("TRADEWIRE_AI_KEY"); key != "" {
		c.Assist.APIKey = key
	}
	if path := os.Getenv("TRADEWIRE_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if path := os.Getenv("TRADEWIRE_ARCHIVE"); path != "" {
		c.Storage.ArchiveDir = path
	}
	if path := os.Getenv("TRADEWIRE_CREDENTIALS"); path != "" {
		c.Storage.CredentialsPath = path
	}
}

// Country returns the channel configuration for a country code.
func (c *Config) Country(code string) (CountryConfig, bool) {
	cc, ok := c.Countries[code]
	return cc, ok
}

// GetAssistTimeout returns the assistant timeout as a duration.
func (c *Config) GetAssistTimeout() time.Duration {
	d, err := time.ParseDuration(c.Assist.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetFTPTimeout returns the FTP dial timeout for one country config.
func (f *FTPConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path not configured")
	}
	if c.Storage.ArchiveDir == "" {
		return fmt.Errorf("storage.archive_dir not configured")
	}
	for code, country := range c.Countries {
		if country.FTP == nil && country.Portal == nil {
			return fmt.Errorf("country %s has no configured channel", code)
		}
		if country.FTP != nil && country.FTP.Host == "" {
			return fmt.Errorf("country %s: ftp host not configured", code)
		}
		if country.Portal != nil && country.Portal.LoginURL == "" && country.Portal.BaseURL == "" {
			return fmt.Errorf("country %s: portal needs a base_url or login_url", code)
		}
	}
	if c.Assist.Enabled && c.Assist.APIKey == "" {
		return fmt.Errorf("assist enabled but no API key configured (set GEMINI_API_KEY)")
	}
	return nil
}
