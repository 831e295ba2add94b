package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"homelab-metrics/internal/util"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	API       APIConfig       `yaml:"api"`
	Collector CollectorConfig `yaml:"collector"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	DBFile  string `yaml:"db_file"`
}

type LogConfig struct {
	Dir       string `yaml:"dir"`
	File      string `yaml:"file"`
	Level     string `yaml:"level"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	Console   bool   `yaml:"console"`
}

type APIConfig struct {
	// DefaultNode is served when no node is requested and nothing is stored yet.
	DefaultNode string `yaml:"default_node"`
}

type CollectorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	NodeID   string        `yaml:"node_id"`
	Interval time.Duration `yaml:"interval"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 25 * time.Second
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.DBFile == "" {
		c.Storage.DBFile = "metrics.db"
	}
	if c.Log.File == "" {
		c.Log.File = "webService.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.API.DefaultNode == "" {
		c.API.DefaultNode = "pve"
	}
	if c.Collector.Interval == 0 {
		c.Collector.Interval = 10 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	if c.Storage.DataDir == "" || c.Storage.DBFile == "" {
		return fmt.Errorf("storage.data_dir and storage.db_file are required")
	}
	if _, err := util.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Collector.Interval <= 0 {
		return fmt.Errorf("collector.interval must be positive")
	}
	return nil
}

// DBPath is the database file location, relative to the working directory
// unless data_dir is absolute.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.DBFile)
}
