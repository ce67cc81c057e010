package runtime

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvHost        = "STOREFRONT_DB_HOST"
	EnvPort        = "STOREFRONT_DB_PORT"
	EnvName        = "STOREFRONT_DB_NAME"
	EnvUser        = "STOREFRONT_DB_USER"
	EnvPassword    = "STOREFRONT_DB_PASSWORD"
	EnvSSLMode     = "STOREFRONT_DB_SSLMODE"
	EnvMaxConns    = "STOREFRONT_DB_MAX_CONNS"
	EnvLogLevel    = "STOREFRONT_LOG_LEVEL"
)

// Config represents database configuration.
type Config struct {
	// URL, when set, is used as is and the discrete fields are ignored.
	URL      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32

	// LogLevel is the pgx trace level: trace, debug, info, warn, error or none.
	LogLevel string
}

// DefaultConfig returns a default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		Database: "storefront",
		User:     "postgres",
		SSLMode:  "prefer",
		MaxConns: 10,
		MinConns: 2,
		LogLevel: "warn",
	}
}

// ConfigFromEnv overlays the environment on DefaultConfig.
func ConfigFromEnv() (*Config, error) {
	return configFromLookup(os.LookupEnv)
}

func configFromLookup(lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()

	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		cfg.URL = v
	}
	if v, ok := lookup(EnvHost); ok && v != "" {
		cfg.Host = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.Port = port
	}
	if v, ok := lookup(EnvName); ok && v != "" {
		cfg.Database = v
	}
	if v, ok := lookup(EnvUser); ok && v != "" {
		cfg.User = v
	}
	if v, ok := lookup(EnvPassword); ok {
		cfg.Password = v
	}
	if v, ok := lookup(EnvSSLMode); ok && v != "" {
		cfg.SSLMode = v
	}
	if v, ok := lookup(EnvMaxConns); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvMaxConns, err)
		}
		cfg.MaxConns = int32(n)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}

	return cfg, cfg.Validate()
}

// Validate reports configuration that cannot produce a connection.
func (c *Config) Validate() error {
	var errs []error
	if c.URL == "" {
		if c.Host == "" {
			errs = append(errs, errors.New("host is required"))
		}
		if c.Port < 0 || c.Port > 65535 {
			errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
		}
		if c.Database == "" {
			errs = append(errs, errors.New("database is required"))
		}
		if c.User == "" {
			errs = append(errs, errors.New("user is required"))
		}
	}
	switch c.SSLMode {
	case "", "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		errs = append(errs, fmt.Errorf("unknown sslmode %q", c.SSLMode))
	}
	if c.MinConns < 0 || c.MaxConns < 0 || (c.MaxConns > 0 && c.MinConns > c.MaxConns) {
		errs = append(errs, fmt.Errorf("invalid pool size min=%d max=%d", c.MinConns, c.MaxConns))
	}
	if _, err := parseTraceLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ConnString returns the connection URL for the configuration.
func (c *Config) ConnString() string {
	if c.URL != "" {
		return c.URL
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", c.Host, port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}
