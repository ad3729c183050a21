package config

import (
	"github.com/roach88/paywatch/internal/reconcile"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:    "paywatch.db",
			Backend: BackendSQLite,
		},
		Blockfrost: BlockfrostConfig{
			Network: "preprod",
		},
		Reconcile: ReconcileConfig{
			Interval:   reconcile.DefaultInterval,
			Timeout:    reconcile.DefaultTimeout,
			OracleWait: reconcile.DefaultOracleWait,
		},
		HTTP: HTTPConfig{
			Listen: ":8080",
		},
	}
}

// setDefaults registers every key with viper so environment variables
// can override keys absent from the file.
func setDefaults(set func(key string, value any)) {
	d := DefaultConfig()
	set("database.path", d.Database.Path)
	set("database.backend", d.Database.Backend)
	set("database.postgres_dsn", d.Database.PostgresDSN)
	set("blockfrost.network", d.Blockfrost.Network)
	set("blockfrost.project_id", d.Blockfrost.ProjectID)
	set("blockfrost.base_url", d.Blockfrost.BaseURL)
	set("reconcile.interval", d.Reconcile.Interval)
	set("reconcile.timeout", d.Reconcile.Timeout)
	set("reconcile.oracle_wait", d.Reconcile.OracleWait)
	set("http.listen", d.HTTP.Listen)
	set("http.admin_addresses", d.HTTP.AdminAddresses)
}
