// Package daemon is the composition root: it loads configuration, opens the
// store, wires the services together and runs the HTTP server plus the
// scheduled ledger audit.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the daemon configuration, loaded from ~/.kaizen/config.toml
// with environment overrides on top.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Audit   AuditConfig   `toml:"audit"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
	CORS    bool   `toml:"cors"`
}

// StorageConfig selects the storage backend. Driver is "sqlite" or
// "postgres"; Path is the sqlite file, DSN the postgres connection string.
type StorageConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

// AuditConfig configures the scheduled balance-invariant sweep.
// Schedule is a standard 5-field cron expression.
type AuditConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
}

// Addr returns the host:port the server binds.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultConfig returns the defaults used when no config file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8484,
			Metrics: true,
			CORS:    true,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(homeDir(), ".kaizen", "kaizen.db"),
		},
		Audit: AuditConfig{
			Enabled:  true,
			Schedule: "0 3 * * *",
		},
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// ConfigPath returns the config file location, honoring KAIZEN_HOME.
func ConfigPath() string {
	if dir := os.Getenv("KAIZEN_HOME"); dir != "" {
		return filepath.Join(dir, "config.toml")
	}
	return filepath.Join(homeDir(), ".kaizen", "config.toml")
}

// LoadConfig builds the effective configuration: defaults, then the TOML
// file if present, then environment variables. A .env file in the working
// directory is folded into the environment first.
func LoadConfig() (Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := ConfigPath()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KAIZEN_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("KAIZEN_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("KAIZEN_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("KAIZEN_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DSN = v
	}
}
