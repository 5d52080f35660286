// Package config defines rampart's configuration, loaded from a TOML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rampartdb/rampart/helpers"
)

// DatabaseConfig holds the database connection and resilience configuration.
type DatabaseConfig struct {
	DSN                     string `toml:"dsn"`                       // PostgreSQL connection string (overridden by DATABASE_URL)
	MinConns                int32  `toml:"min_conns"`                 // Minimum number of connections kept in the pool (default: 5)
	MaxConns                int32  `toml:"max_conns"`                 // Maximum number of connections in the pool (default: 20)
	MaxConnLifetime         string `toml:"max_conn_lifetime"`         // Maximum lifetime of a connection (default: "1h")
	MaxConnIdleTime         string `toml:"max_conn_idle_time"`        // Idle time before a connection is reaped (default: "5m")
	MaxConnUses             int64  `toml:"max_conn_uses"`             // Checkouts before a connection is recycled (default: 50000)
	CommandTimeout          string `toml:"command_timeout"`           // Per-operation timeout (default: "60s")
	ConnectTimeout          string `toml:"connect_timeout"`           // Timeout for establishing a connection (default: "10s")
	TestTimeout             string `toml:"test_timeout"`              // Timeout for the connection self-test (default: "10s")
	HealthTimeout           string `toml:"health_timeout"`            // Timeout for the health check probe (default: "5s")
	LogQueries              bool   `toml:"log_queries"`               // Log individual SQL statements at debug level
	MaxRetries              int    `toml:"max_retries"`               // Attempts per operation for retryable failures (default: 3)
	CircuitBreakerThreshold int    `toml:"circuit_breaker_threshold"` // Consecutive connect failures before the breaker opens (default: 5)
	CircuitBreakerCooldown  string `toml:"circuit_breaker_cooldown"`  // Time after the last failure before the breaker closes (default: "30s")
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Output string `toml:"output"` // Log output: "stderr", "stdout", or file path
	Format string `toml:"format"` // Log format: "json" or "console"
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", "error"
}

// Config is the top-level configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

// NewDefaultConfig returns a configuration populated with application defaults.
func NewDefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			MinConns:                5,
			MaxConns:                20,
			MaxConnLifetime:         "1h",
			MaxConnIdleTime:         "5m",
			MaxConnUses:             50000,
			CommandTimeout:          "60s",
			ConnectTimeout:          "10s",
			TestTimeout:             "10s",
			HealthTimeout:           "5s",
			MaxRetries:              3,
			CircuitBreakerThreshold: 5,
			CircuitBreakerCooldown:  "30s",
		},
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
	}
}

// Load reads the configuration file at path (when non-empty), applies
// environment overrides and validates the result. A missing file is an
// error only when required is true; otherwise defaults are used.
func Load(path string, required bool) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if os.IsNotExist(err) && !required {
				// Optional config file not present, carry on with defaults.
			} else {
				return nil, fmt.Errorf("failed to load config file '%s': %w", path, err)
			}
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyEnv overrides configuration values from the environment. The
// environment is authoritative where set: DATABASE_URL, LOG_LEVEL,
// DEBUG_MODE, LOG_TO_FILE and LOG_FILE_PATH.
func (c *Config) ApplyEnv() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if boolEnv("DEBUG_MODE") {
		c.Logging.Level = "debug"
	}
	if boolEnv("LOG_TO_FILE") {
		path := os.Getenv("LOG_FILE_PATH")
		if path == "" {
			path = "logs/rampart.log"
		}
		c.Logging.Output = path
	}
}

// Validate checks the configuration for fatal problems. A missing DSN is
// fatal: the process should not proceed without a database.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required (set [database].dsn or DATABASE_URL)")
	}

	minConns := c.Database.GetMinConns()
	maxConns := c.Database.GetMaxConns()
	if minConns < 0 {
		return fmt.Errorf("database min_conns must not be negative, got %d", minConns)
	}
	if maxConns < 1 {
		return fmt.Errorf("database max_conns must be at least 1, got %d", maxConns)
	}
	if minConns > maxConns {
		return fmt.Errorf("database min_conns (%d) must not exceed max_conns (%d)", minConns, maxConns)
	}
	if c.Database.GetMaxRetries() < 1 {
		return fmt.Errorf("database max_retries must be at least 1, got %d", c.Database.MaxRetries)
	}
	if c.Database.GetCircuitBreakerThreshold() < 1 {
		return fmt.Errorf("database circuit_breaker_threshold must be at least 1, got %d", c.Database.CircuitBreakerThreshold)
	}

	durations := []struct {
		name  string
		parse func() (time.Duration, error)
	}{
		{"max_conn_lifetime", c.Database.GetMaxConnLifetime},
		{"max_conn_idle_time", c.Database.GetMaxConnIdleTime},
		{"command_timeout", c.Database.GetCommandTimeout},
		{"connect_timeout", c.Database.GetConnectTimeout},
		{"test_timeout", c.Database.GetTestTimeout},
		{"health_timeout", c.Database.GetHealthTimeout},
		{"circuit_breaker_cooldown", c.Database.GetCircuitBreakerCooldown},
	}
	for _, d := range durations {
		if _, err := d.parse(); err != nil {
			return fmt.Errorf("database %s: %w", d.name, err)
		}
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging format must be 'console' or 'json', got '%s'", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging level '%s'", c.Logging.Level)
	}

	return nil
}

// GetMinConns returns the minimum pool size.
func (d *DatabaseConfig) GetMinConns() int32 {
	if d.MinConns == 0 {
		return 5
	}
	return d.MinConns
}

// GetMaxConns returns the maximum pool size.
func (d *DatabaseConfig) GetMaxConns() int32 {
	if d.MaxConns == 0 {
		return 20
	}
	return d.MaxConns
}

// GetMaxConnUses returns the number of checkouts after which a pooled
// connection is destroyed and replaced.
func (d *DatabaseConfig) GetMaxConnUses() int64 {
	if d.MaxConnUses == 0 {
		return 50000
	}
	return d.MaxConnUses
}

// GetMaxRetries returns the number of attempts per operation.
func (d *DatabaseConfig) GetMaxRetries() int {
	if d.MaxRetries == 0 {
		return 3
	}
	return d.MaxRetries
}

// GetCircuitBreakerThreshold returns the consecutive failure count that
// opens the circuit.
func (d *DatabaseConfig) GetCircuitBreakerThreshold() int {
	if d.CircuitBreakerThreshold == 0 {
		return 5
	}
	return d.CircuitBreakerThreshold
}

// GetMaxConnLifetime parses the max connection lifetime duration.
func (d *DatabaseConfig) GetMaxConnLifetime() (time.Duration, error) {
	if d.MaxConnLifetime == "" {
		return time.Hour, nil
	}
	return helpers.ParseDuration(d.MaxConnLifetime)
}

// GetMaxConnIdleTime parses the max connection idle time duration.
func (d *DatabaseConfig) GetMaxConnIdleTime() (time.Duration, error) {
	if d.MaxConnIdleTime == "" {
		return 5 * time.Minute, nil
	}
	return helpers.ParseDuration(d.MaxConnIdleTime)
}

// GetCommandTimeout parses the per-operation timeout.
func (d *DatabaseConfig) GetCommandTimeout() (time.Duration, error) {
	if d.CommandTimeout == "" {
		return 60 * time.Second, nil
	}
	return helpers.ParseDuration(d.CommandTimeout)
}

// GetConnectTimeout parses the connection establishment timeout.
func (d *DatabaseConfig) GetConnectTimeout() (time.Duration, error) {
	if d.ConnectTimeout == "" {
		return 10 * time.Second, nil
	}
	return helpers.ParseDuration(d.ConnectTimeout)
}

// GetTestTimeout parses the connection self-test timeout.
func (d *DatabaseConfig) GetTestTimeout() (time.Duration, error) {
	if d.TestTimeout == "" {
		return 10 * time.Second, nil
	}
	return helpers.ParseDuration(d.TestTimeout)
}

// GetHealthTimeout parses the health check probe timeout.
func (d *DatabaseConfig) GetHealthTimeout() (time.Duration, error) {
	if d.HealthTimeout == "" {
		return 5 * time.Second, nil
	}
	return helpers.ParseDuration(d.HealthTimeout)
}

// GetCircuitBreakerCooldown parses the circuit breaker cooldown duration.
func (d *DatabaseConfig) GetCircuitBreakerCooldown() (time.Duration, error) {
	if d.CircuitBreakerCooldown == "" {
		return 30 * time.Second, nil
	}
	return helpers.ParseDuration(d.CircuitBreakerCooldown)
}

func boolEnv(name string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	return v == "true" || v == "1" || v == "yes"
}
