// Package config provides configuration loading and management for the
// policy catalog server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yuno-app/policy-catalog-server/internal/policy"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Source    SourceConfig     `yaml:"source"`
	Cache     CacheConfig      `yaml:"cache,omitempty"`
	Sync      SyncConfig       `yaml:"sync,omitempty"`
	Database  *DatabaseConfig  `yaml:"database,omitempty"`
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// SourceConfig defines the upstream policy API connection settings
type SourceConfig struct {
	// BaseURL is the API origin, without path
	// Example: "https://www.youthcenter.go.kr"
	BaseURL string `yaml:"baseUrl"`

	// APIKeyFile is the path to a file containing the API key
	// This is the recommended approach for production deployments
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`

	// Timeout is the per-request timeout (e.g., "10s")
	Timeout string `yaml:"timeout,omitempty"`
}

// CacheConfig defines read-through cache behavior
type CacheConfig struct {
	// TTL is how long a cached record counts as fresh (e.g., "6h")
	TTL string `yaml:"ttl,omitempty"`

	// ReadPageSize is the default page size for read queries
	ReadPageSize int `yaml:"readPageSize,omitempty"`

	// PersistQueue is the capacity of the background persistence queue,
	// counted in batches
	PersistQueue int `yaml:"persistQueue,omitempty"`

	// PersistWorkers is the number of background persistence workers
	PersistWorkers int `yaml:"persistWorkers,omitempty"`
}

// SyncConfig defines full catalog synchronization settings
type SyncConfig struct {
	// Interval is how often the scheduler runs a full sync (e.g., "6h")
	Interval string `yaml:"interval,omitempty"`

	// Retention is how long a record may go unseen by sync before it is
	// deactivated (e.g., "168h" for 7 days)
	Retention string `yaml:"retention,omitempty"`

	// PageSize is the number of items requested per source page
	PageSize int `yaml:"pageSize,omitempty"`

	// PageCeiling caps the pages fetched per category in one run
	PageCeiling int `yaml:"pageCeiling,omitempty"`

	// InterPageDelay is the pause between page fetches (e.g., "100ms")
	InterPageDelay string `yaml:"interPageDelay,omitempty"`

	// Categories overrides the default category set
	Categories []string `yaml:"categories,omitempty"`
}

// TelemetryConfig defines metrics exposure settings
type TelemetryConfig struct {
	// MetricsEnabled turns the Prometheus /metrics endpoint on
	MetricsEnabled bool `yaml:"metricsEnabled,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// EnvPrefix is the prefix for environment variables consumed by the server.
const EnvPrefix = "YUNO"

// Defaults applied by validate when the corresponding field is unset.
const (
	DefaultSourceTimeout  = 10 * time.Second
	DefaultCacheTTL       = 6 * time.Hour
	DefaultReadPageSize   = 20
	DefaultPersistQueue   = 64
	DefaultPersistWorkers = 4
	DefaultSyncInterval   = 6 * time.Hour
	DefaultRetention      = 7 * 24 * time.Hour
	DefaultSyncPageSize   = 50
	DefaultPageCeiling    = 10
	DefaultInterPageDelay = 100 * time.Millisecond
)

// GetAPIKey returns the source API key using the following priority:
// 1. Read from APIKeyFile if specified
// 2. Read from YUNO_SOURCE_API_KEY environment variable
//
// The key from file will have leading/trailing whitespace trimmed.
func (s *SourceConfig) GetAPIKey() (string, error) {
	if s.APIKeyFile != "" {
		cleanPath := filepath.Clean(s.APIKeyFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read API key from file %s: %w", s.APIKeyFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envKey := os.Getenv("YUNO_SOURCE_API_KEY"); envKey != "" {
		return envKey, nil
	}

	return "", fmt.Errorf(
		"no source API key configured: set apiKeyFile or YUNO_SOURCE_API_KEY environment variable",
	)
}

// GetTimeout returns the per-request timeout, falling back to the default.
func (s *SourceConfig) GetTimeout() time.Duration {
	return parseDurationOr(s.Timeout, DefaultSourceTimeout)
}

// GetTTL returns the cache freshness window, falling back to the default.
func (c *CacheConfig) GetTTL() time.Duration {
	return parseDurationOr(c.TTL, DefaultCacheTTL)
}

// GetReadPageSize returns the default read page size.
func (c *CacheConfig) GetReadPageSize() int {
	if c.ReadPageSize > 0 {
		return c.ReadPageSize
	}
	return DefaultReadPageSize
}

// GetPersistQueue returns the background persistence queue capacity.
func (c *CacheConfig) GetPersistQueue() int {
	if c.PersistQueue > 0 {
		return c.PersistQueue
	}
	return DefaultPersistQueue
}

// GetPersistWorkers returns the background persistence worker count.
func (c *CacheConfig) GetPersistWorkers() int {
	if c.PersistWorkers > 0 {
		return c.PersistWorkers
	}
	return DefaultPersistWorkers
}

// GetInterval returns the scheduled sync interval.
func (s *SyncConfig) GetInterval() time.Duration {
	return parseDurationOr(s.Interval, DefaultSyncInterval)
}

// GetRetention returns the unseen-record retention window.
func (s *SyncConfig) GetRetention() time.Duration {
	return parseDurationOr(s.Retention, DefaultRetention)
}

// GetPageSize returns the source page size for sync runs.
func (s *SyncConfig) GetPageSize() int {
	if s.PageSize > 0 {
		return s.PageSize
	}
	return DefaultSyncPageSize
}

// GetPageCeiling returns the per-category page cap.
func (s *SyncConfig) GetPageCeiling() int {
	if s.PageCeiling > 0 {
		return s.PageCeiling
	}
	return DefaultPageCeiling
}

// GetInterPageDelay returns the pause between page fetches.
func (s *SyncConfig) GetInterPageDelay() time.Duration {
	return parseDurationOr(s.InterPageDelay, DefaultInterPageDelay)
}

// GetCategories returns the category set to sync, defaulting to the full
// canonical list.
func (s *SyncConfig) GetCategories() []string {
	if len(s.Categories) > 0 {
		return s.Categories
	}
	return policy.Categories
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from YUNO_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if d.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv("YUNO_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or YUNO_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	// URL-escape the password to handle special characters
	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.validateSource(); err != nil {
		return err
	}

	if err := c.validateDurations(); err != nil {
		return err
	}

	for _, cat := range c.Sync.Categories {
		if !policy.ValidCategory(cat) {
			return fmt.Errorf("sync.categories: unknown category %q", cat)
		}
	}

	return nil
}

func (c *Config) validateSource() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.baseUrl is required")
	}

	parsed, err := url.Parse(c.Source.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("source.baseUrl must be an absolute URL, got %q", c.Source.BaseURL)
	}

	return nil
}

// validateDurations rejects malformed duration strings up front so that a
// typo does not silently fall back to a default at use time.
func (c *Config) validateDurations() error {
	durations := map[string]string{
		"source.timeout":      c.Source.Timeout,
		"cache.ttl":           c.Cache.TTL,
		"sync.interval":       c.Sync.Interval,
		"sync.retention":      c.Sync.Retention,
		"sync.interPageDelay": c.Sync.InterPageDelay,
	}
	for field, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '30m', '1h'): %w", field, err)
		}
	}
	return nil
}
