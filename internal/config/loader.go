package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/paywatch/internal/ledger"
	"github.com/roach88/paywatch/internal/reconcile"
)

// EnvPrefix prefixes every environment override, e.g.
// PAYWATCH_BLOCKFROST_PROJECT_ID.
const EnvPrefix = "PAYWATCH"

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply. The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v.SetDefault)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate rejects non-positive durations, unknown backends and a
// postgres backend without a DSN.
func (c *Config) Validate() error {
	if err := c.Loop().Validate(); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Database.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("database.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown database.backend %q (want sqlite or postgres)", c.Database.Backend)
	}
	if c.Blockfrost.BaseURL == "" {
		if _, err := ledger.BlockfrostBaseURL(c.Blockfrost.Network); err != nil {
			return fmt.Errorf("blockfrost: %w", err)
		}
	}
	return nil
}

// Loop returns the reconciliation timing.
func (c *Config) Loop() reconcile.Config {
	return reconcile.Config{
		Interval:   c.Reconcile.Interval,
		Timeout:    c.Reconcile.Timeout,
		OracleWait: c.Reconcile.OracleWait,
	}
}

// BlockfrostURL returns BaseURL, or the URL for Network if unset.
func (c *Config) BlockfrostURL() (string, error) {
	if c.Blockfrost.BaseURL != "" {
		return c.Blockfrost.BaseURL, nil
	}
	return ledger.BlockfrostBaseURL(c.Blockfrost.Network)
}

// IsAdmin reports whether addr is in the admin allow-list.
func (c *Config) IsAdmin(addr string) bool {
	addr = strings.TrimSpace(addr)
	return addr != "" && slices.Contains(c.HTTP.AdminAddresses, addr)
}
