// Package config loads paywatch settings: built-in defaults, then an
// optional YAML file, then PAYWATCH_* environment variables.
package config

import "time"

// Config represents the full paywatch configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Blockfrost BlockfrostConfig `yaml:"blockfrost" mapstructure:"blockfrost"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
}

// DatabaseConfig selects the pending store and the system of record.
// The pending store is always SQLite at Path.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`

	// Backend is the system of record: "sqlite" (same file as Path) or "postgres".
	Backend     string `yaml:"backend" mapstructure:"backend"`
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
}

// BlockfrostConfig configures the chain oracle and submitter.
type BlockfrostConfig struct {
	Network   string `yaml:"network" mapstructure:"network"`
	ProjectID string `yaml:"project_id" mapstructure:"project_id"`
	// BaseURL overrides the URL derived from Network.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ReconcileConfig holds the loop timing.
type ReconcileConfig struct {
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	OracleWait time.Duration `yaml:"oracle_wait" mapstructure:"oracle_wait"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen"`

	// AdminAddresses may call admin endpoints (X-Wallet-Address header).
	AdminAddresses []string `yaml:"admin_addresses" mapstructure:"admin_addresses"`
}

// Record backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)
