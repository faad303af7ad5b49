package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultListen is the default listen address of the board API.
	DefaultListen = ":8080"

	// DefaultRequestsPerMinute is the per-IP limit used when rate
	// limiting is enabled without an explicit limit.
	DefaultRequestsPerMinute = 120

	// DefaultDatabaseDriver is the default preference store driver.
	DefaultDatabaseDriver = "sqlite"

	// DefaultSQLitePath is the default sqlite database file.
	DefaultSQLitePath = "mlboard.db"

	// DefaultMySQLCharset is the connection charset used when none is set.
	DefaultMySQLCharset = "utf8mb4"
)

// APIConfig contains all board API configuration.
type APIConfig struct {
	Server APIServerConfig `yaml:"server" mapstructure:"server"`
	// RefreshInterval reloads the sources periodically when positive.
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty" mapstructure:"refresh_interval"`
}

// APIServerConfig contains HTTP server settings.
type APIServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// Validate checks the API settings.
func (c *APIConfig) Validate() error {
	if c.Server.Listen == "" {
		return errors.New("server.listen is required")
	}

	if c.RefreshInterval < 0 {
		return errors.New("refresh_interval must not be negative")
	}

	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute < 1 {
		return errors.New("server.rate_limit.requests_per_minute must be positive")
	}

	return nil
}

// PreferencesConfig configures where user preferences are persisted.
type PreferencesConfig struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
	MySQL    MySQLConfig          `yaml:"mysql,omitempty" mapstructure:"mysql"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// MySQLConfig contains MySQL connection settings.
type MySQLConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	Charset  string `yaml:"charset,omitempty" mapstructure:"charset"`
}

// DSN returns the go-sql-driver connection string.
func (c *MySQLConfig) DSN() string {
	charset := c.Charset
	if charset == "" {
		charset = DefaultMySQLCharset
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, charset)
}

// Validate checks the database settings.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "sqlite":
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required")
		}
	case "postgres":
		if c.Postgres.Host == "" || c.Postgres.Database == "" {
			return errors.New("postgres.host and postgres.database are required")
		}
	case "mysql":
		if c.MySQL.Host == "" || c.MySQL.Database == "" {
			return errors.New("mysql.host and mysql.database are required")
		}
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}

	return nil
}
