package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Expiry   ExpiryConfig   `yaml:"expiry"`
	Stats    StatsConfig    `yaml:"stats"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ServerConfig contains server-wide settings
type ServerConfig struct {
	Name            string        `yaml:"name"`             // Instance name used in logs
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Default: 30s
}

// APIConfig contains HTTP API settings
type APIConfig struct {
	ListenAddr      string          `yaml:"listen_addr"`
	APIKey          string          `yaml:"api_key"`
	APIKeyHash      string          `yaml:"api_key_hash"`      // bcrypt hash, see `hyperdrive hash-key`
	MaxHeaderBytes  int             `yaml:"max_header_bytes"`  // Max HTTP header size (default: 1MB)
	MaxBodyBytes    int64           `yaml:"max_body_bytes"`    // Max request body (default: 1MB)
	ReadTimeout     time.Duration   `yaml:"read_timeout"`      // HTTP read timeout (default: 30s)
	WriteTimeout    time.Duration   `yaml:"write_timeout"`     // HTTP write timeout (default: 30s)
	IdleTimeout     time.Duration   `yaml:"idle_timeout"`      // HTTP idle timeout (default: 60s)
	AllowedIPs      []string        `yaml:"allowed_ips"`       // IP addresses/CIDRs allowed to call the API
	DefaultPageSize int             `yaml:"default_page_size"` // Default: 20
	MaxPageSize     int             `yaml:"max_page_size"`     // Default: 100
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Auth            AuthConfig      `yaml:"auth"`
	TLS             TLSConfig       `yaml:"tls"`
}

// TLSConfig serves the API over HTTPS from certificate files or ACME
type TLSConfig struct {
	CertFile string     `yaml:"cert_file"`
	KeyFile  string     `yaml:"key_file"`
	ACME     ACMEConfig `yaml:"acme"`
}

// ACMEConfig contains Let's Encrypt settings
type ACMEConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Email         string   `yaml:"email"`
	Domains       []string `yaml:"domains"`
	CacheDir      string   `yaml:"cache_dir"`      // Default: /var/lib/hyperdrive/certs
	ChallengeAddr string   `yaml:"challenge_addr"` // HTTP-01 listener, default: :80
}

// RateLimitConfig limits mutating requests per organization
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // Default: 10
	Burst             int     `yaml:"burst"`               // Default: 20
}

// AuthConfig contains actor authentication settings
type AuthConfig struct {
	// JWTSecret enables HS256 bearer tokens. Without it actors are read from
	// X-Actor-ID, X-Organization-ID and X-Actor-Role headers.
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	Leeway    time.Duration `yaml:"leeway"`
	TokenTTL  time.Duration `yaml:"token_ttl"` // Default: 24h, used by `hyperdrive token`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level"`        // debug, info, warn, error
	Format     string `yaml:"format"`       // json, text
	File       string `yaml:"file"`         // Rotated log file; empty logs to stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`  // Default: 100
	MaxBackups int    `yaml:"max_backups"`  // Default: 5
	MaxAgeDays int    `yaml:"max_age_days"` // Default: 30
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ListenAddr    string        `yaml:"listen_addr"`    // Default: :9090
	Path          string        `yaml:"path"`           // Default: /metrics
	FlushInterval time.Duration `yaml:"flush_interval"` // Default: 1m
	AllowedIPs    []string      `yaml:"allowed_ips"`    // IP addresses/CIDRs allowed to access metrics
}

// ExpiryConfig contains background expiry settings
type ExpiryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`       // Default: 1m
	CheckInterval time.Duration `yaml:"check_interval"` // Consistency check, 0 = disabled
}

// StatsConfig contains dashboard settings
type StatsConfig struct {
	EndingSoonDays  int `yaml:"ending_soon_days"`  // Default: 7
	SpendWindowDays int `yaml:"spend_window_days"` // Default: 30
}

// DefaultsConfig contains lifecycle defaults
type DefaultsConfig struct {
	SubmissionWindow time.Duration `yaml:"submission_window"` // Default: 168h
	CreditLimit      string        `yaml:"credit_limit"`      // Default: 0
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		hostname, _ := os.Hostname()
		c.Server.Name = hostname
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.MaxHeaderBytes == 0 {
		c.API.MaxHeaderBytes = 1 << 20 // 1 MB
	}
	if c.API.MaxBodyBytes == 0 {
		c.API.MaxBodyBytes = 1 << 20
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 30 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 30 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}
	if c.API.DefaultPageSize == 0 {
		c.API.DefaultPageSize = 20
	}
	if c.API.MaxPageSize == 0 {
		c.API.MaxPageSize = 100
	}
	if c.API.RateLimit.RequestsPerSecond == 0 {
		c.API.RateLimit.RequestsPerSecond = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = 24 * time.Hour
	}
	if c.API.TLS.ACME.CacheDir == "" {
		c.API.TLS.ACME.CacheDir = "/var/lib/hyperdrive/certs"
	}
	if c.API.TLS.ACME.ChallengeAddr == "" {
		c.API.TLS.ACME.ChallengeAddr = ":80"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "/var/lib/hyperdrive/hyperdrive.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 30
	}

	// Metrics defaults
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.FlushInterval == 0 {
		c.Metrics.FlushInterval = time.Minute
	}

	if c.Expiry.Interval == 0 {
		c.Expiry.Interval = time.Minute
	}

	if c.Stats.EndingSoonDays == 0 {
		c.Stats.EndingSoonDays = 7
	}
	if c.Stats.SpendWindowDays == 0 {
		c.Stats.SpendWindowDays = 30
	}

	if c.Defaults.SubmissionWindow == 0 {
		c.Defaults.SubmissionWindow = 7 * 24 * time.Hour
	}
	if c.Defaults.CreditLimit == "" {
		c.Defaults.CreditLimit = "0"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	if c.API.DefaultPageSize < 1 || c.API.MaxPageSize < 1 {
		return fmt.Errorf("api page sizes must be positive")
	}
	if c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("api.default_page_size (%d) exceeds api.max_page_size (%d)", c.API.DefaultPageSize, c.API.MaxPageSize)
	}

	if c.API.RateLimit.Enabled && (c.API.RateLimit.RequestsPerSecond < 0 || c.API.RateLimit.Burst < 1) {
		return fmt.Errorf("api.rate_limit requires positive requests_per_second and burst")
	}

	if secret := c.API.Auth.JWTSecret; secret != "" && len(secret) < 16 {
		return fmt.Errorf("api.auth.jwt_secret must be at least 16 characters")
	}

	if c.API.APIKey != "" && c.API.APIKeyHash != "" {
		return fmt.Errorf("api.api_key and api.api_key_hash are mutually exclusive")
	}

	if err := c.API.TLS.validate(); err != nil {
		return err
	}

	if err := validateAllowedIPs("api.allowed_ips", c.API.AllowedIPs); err != nil {
		return err
	}
	if err := validateAllowedIPs("metrics.allowed_ips", c.Metrics.AllowedIPs); err != nil {
		return err
	}

	if c.Stats.EndingSoonDays < 0 || c.Stats.SpendWindowDays < 0 {
		return fmt.Errorf("stats windows must not be negative")
	}

	if c.Defaults.SubmissionWindow < 0 {
		return fmt.Errorf("defaults.submission_window must not be negative")
	}
	if _, err := c.CreditLimit(); err != nil {
		return err
	}

	return nil
}

func (t *TLSConfig) validate() error {
	if (t.CertFile == "") != (t.KeyFile == "") {
		return fmt.Errorf("api.tls.cert_file and api.tls.key_file must be set together")
	}
	if !t.ACME.Enabled {
		return nil
	}
	if t.CertFile != "" {
		return fmt.Errorf("api.tls.acme cannot be combined with cert_file")
	}
	if len(t.ACME.Domains) == 0 {
		return fmt.Errorf("api.tls.acme.domains is required when acme is enabled")
	}
	if t.ACME.Email == "" {
		return fmt.Errorf("api.tls.acme.email is required when acme is enabled")
	}
	return nil
}

// Enabled returns true if the API is served over HTTPS
func (t *TLSConfig) Enabled() bool {
	return t.CertFile != "" || t.ACME.Enabled
}

// RequiresAPIKey returns true if API requests must carry a key
func (a *APIConfig) RequiresAPIKey() bool {
	return a.APIKey != "" || a.APIKeyHash != ""
}

// validateAllowedIPs checks the entries of an IP allow-list
func validateAllowedIPs(field string, entries []string) error {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("invalid %s entry %q: %w", field, entry, err)
			}
			continue
		}
		if net.ParseIP(entry) == nil {
			return fmt.Errorf("invalid %s entry %q", field, entry)
		}
	}
	return nil
}

// CreditLimit returns the default wallet credit limit
func (c *Config) CreditLimit() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Defaults.CreditLimit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid defaults.credit_limit %q: %w", c.Defaults.CreditLimit, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("defaults.credit_limit must not be negative")
	}
	return d, nil
}

// HasJWT returns true if bearer token authentication is configured
func (c *Config) HasJWT() bool {
	return c.API.Auth.JWTSecret != ""
}
