package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/homelab/rack/internal/datastore"
)

// Config holds all configuration for the rack service
type Config struct {
	DBPath    string        `yaml:"db_path"`
	Port      string        `yaml:"port"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	DHCP      DHCPConfig    `yaml:"dhcp"`
	Keygen    KeygenConfig  `yaml:"keygen"`
	Storage   StorageConfig `yaml:"storage"`
}

// DHCPConfig locates the DHCP server driven through omshell
type DHCPConfig struct {
	Server      string `yaml:"server"`
	SharedKey   string `yaml:"shared_key"`
	IPv6        bool   `yaml:"ipv6"`
	OmshellPath string `yaml:"omshell_path"`
}

// KeygenConfig configures OMAPI key generation
type KeygenConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig tunes block device reconciliation
type StorageConfig struct {
	MinBlockDeviceSize int64 `yaml:"min_block_device_size"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		DBPath:    "~/rack/data/rack.db",
		Port:      "8080",
		LogLevel:  "info",
		LogFormat: "text",
		DHCP: DHCPConfig{
			OmshellPath: "omshell",
		},
		Keygen: KeygenConfig{
			Path: "dnssec-keygen",
		},
		Storage: StorageConfig{
			MinBlockDeviceSize: 4 * 1024 * 1024,
		},
	}
}

// candidatePaths are tried in order when Load is given no path
func candidatePaths() []string {
	return []string{
		"/etc/rack/config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/rack/config.yaml"),
		"config.yaml",
	}
}

// Load reads a YAML config file over the defaults. An empty path searches the
// usual locations and falls back to defaults when none exists.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, c := range candidatePaths() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Storage.MinBlockDeviceSize <= 0 {
		return fmt.Errorf("storage.min_block_device_size must be positive, got %d", c.Storage.MinBlockDeviceSize)
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// SetupLogger configures the global slog logger from the config
func (c *Config) SetupLogger() *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// InitializeDatabase creates the database directory and opens a migrated datastore
func (c *Config) InitializeDatabase() (*datastore.Datastore, error) {
	dbPath := c.expandPath(c.DBPath)

	// Ensure database directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	ds, err := datastore.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyPragmaOptimizations(ds.DB); err != nil {
		_ = ds.Close()
		return nil, fmt.Errorf("failed to apply performance optimizations: %w", err)
	}

	return ds, nil
}

// expandPath expands ~ to home directory
func (c *Config) expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Return original path if we can't get home dir
		return path
	}

	return filepath.Join(homeDir, path[2:])
}
