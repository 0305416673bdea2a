package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/kartta/types"
)

// DefaultRegions is the region sweep used when a request does not narrow
// the region set.
var DefaultRegions = []string{
	"us-east-1", "us-east-2", "us-west-1", "us-west-2",
	"eu-west-1", "eu-west-2", "eu-west-3", "eu-central-1",
	"ap-southeast-1", "ap-southeast-2", "ap-northeast-1", "ap-northeast-2",
	"ap-south-1", "ca-central-1", "sa-east-1",
}

// Config is the main configuration.
type Config struct {
	Version     string                `yaml:"version"`
	Regions     []string              `yaml:"regions,omitempty"`
	Accounts    []types.AccountTarget `yaml:"accounts,omitempty"`
	RoleName    string                `yaml:"role_name,omitempty"`
	ExternalID  string                `yaml:"external_id,omitempty"`
	SessionName string                `yaml:"session_name,omitempty"`
	Concurrency int                   `yaml:"concurrency,omitempty"`
	Storage     StorageConfig         `yaml:"storage,omitempty"`
	Server      ServerConfig          `yaml:"server,omitempty"`
}

// StorageConfig selects and parameterizes the snapshot store.
type StorageConfig struct {
	Backend       string `yaml:"backend,omitempty"` // "dynamodb" or "bolt"
	Table         string `yaml:"table,omitempty"`
	MetadataTable string `yaml:"metadata_table,omitempty"`
	Region        string `yaml:"region,omitempty"`
	Dir           string `yaml:"dir,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	cfg := &Config{Version: "1"}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if len(c.Regions) == 0 {
		c.Regions = DefaultRegions
	}
	if c.RoleName == "" {
		c.RoleName = "InventoryReadRole"
	}
	if c.SessionName == "" {
		c.SessionName = "kartta-inventory"
	}
	if c.ExternalID == "" {
		c.ExternalID = os.Getenv("EXTERNAL_ID")
	}
	if c.Concurrency == 0 {
		c.Concurrency = 10
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "bolt"
	}
	if c.Storage.Table == "" {
		c.Storage.Table = "kartta-inventory-data"
	}
	if c.Storage.MetadataTable == "" {
		c.Storage.MetadataTable = "kartta-inventory-metadata"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "."
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 60 * time.Second
	}
}

// Validate ensures config has required fields.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}
	switch c.Storage.Backend {
	case "dynamodb", "bolt":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	for _, acct := range c.Accounts {
		if acct.AccountID == "" {
			return fmt.Errorf("account target missing account_id")
		}
	}
	return nil
}

// KnownRegion reports whether region is part of the configured region set.
func (c *Config) KnownRegion(region string) bool {
	for _, r := range c.Regions {
		if r == region {
			return true
		}
	}
	return false
}
