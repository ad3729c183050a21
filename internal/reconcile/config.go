package reconcile

import (
	"fmt"
	"time"
)

const (
	// DefaultInterval is the polling period.
	DefaultInterval = 10 * time.Second

	// DefaultTimeout is how long an operation may stay pending before it
	// is abandoned.
	DefaultTimeout = 120 * time.Second

	// DefaultOracleWait bounds a single oracle call.
	DefaultOracleWait = 5 * time.Second
)

// Config holds the loop's timing parameters.
type Config struct {
	Interval   time.Duration
	Timeout    time.Duration
	OracleWait time.Duration
}

// DefaultConfig returns the default timing.
func DefaultConfig() Config {
	return Config{
		Interval:   DefaultInterval,
		Timeout:    DefaultTimeout,
		OracleWait: DefaultOracleWait,
	}
}

// Validate rejects non-positive durations.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.OracleWait <= 0 {
		return fmt.Errorf("oracle wait must be positive, got %s", c.OracleWait)
	}
	return nil
}
