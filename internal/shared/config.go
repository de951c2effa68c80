package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Playlists PlaylistsConfig `toml:"playlists"`
	Refresh   RefreshConfig   `toml:"refresh"`
	Redis     RedisConfig     `toml:"redis"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path          string `toml:"path"`
	MaxOpenConns  int    `toml:"max_open_conns"`
	MaxIdleConns  int    `toml:"max_idle_conns"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// PlaylistsConfig tunes dynamic playlist evaluation and preview.
type PlaylistsConfig struct {
	DefaultMaxResults int  `toml:"default_max_results"`
	PreviewLimit      int  `toml:"preview_limit"`
	PreviewMaxLimit   int  `toml:"preview_max_limit"`
	CompactPositions  bool `toml:"compact_positions"`
}

// RefreshConfig contains batch refresh settings.
type RefreshConfig struct {
	MaxAgeHours        int     `toml:"max_age_hours"`
	RateLimit          float64 `toml:"rate_limit"` // playlists per second, 0 disables throttling
	LockTimeoutSeconds int     `toml:"lock_timeout_seconds"`
}

// RedisConfig enables the cross-process playlist lock.
type RedisConfig struct {
	Enabled        bool   `toml:"enabled"`
	Address        string `toml:"address"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	DB             int    `toml:"db"`
	LockTTLSeconds int    `toml:"lock_ttl_seconds"`
}

// Addr returns the host:port the HTTP server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxAge returns the staleness threshold for the batch refresh.
func (c RefreshConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// LockTimeout returns how long a reconciliation waits for its playlist lock.
func (c RefreshConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// LockTTL returns the expiry applied to Redis lock keys.
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	if c.Playlists.DefaultMaxResults <= 0 {
		return fmt.Errorf("%w: playlists.default_max_results must be positive", ErrInvalidConfig)
	}
	if c.Playlists.PreviewLimit <= 0 || c.Playlists.PreviewMaxLimit < c.Playlists.PreviewLimit {
		return fmt.Errorf("%w: playlists.preview_limit must be positive and at most preview_max_limit", ErrInvalidConfig)
	}
	if c.Refresh.MaxAgeHours < 0 {
		return fmt.Errorf("%w: refresh.max_age_hours cannot be negative", ErrInvalidConfig)
	}
	if c.Refresh.RateLimit < 0 {
		return fmt.Errorf("%w: refresh.rate_limit cannot be negative", ErrInvalidConfig)
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("%w: redis.address is required when redis is enabled", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadOrDefault loads the config at path when it exists and falls back to [DefaultConfig] otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}
