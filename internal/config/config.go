package config

import (
	"errors"
	"fmt"
	"time"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	HTTPAddr          string        `mapstructure:"http_addr" yaml:"http_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// IdleTimeout bounds how long a chat connection may stay silent. 0 waits forever.
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxClients   int           `mapstructure:"max_clients" yaml:"max_clients"`
	MaxGroups    int           `mapstructure:"max_groups" yaml:"max_groups"`
	MaxLineBytes int           `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
	ReplayDelay  time.Duration `mapstructure:"replay_delay" yaml:"replay_delay"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`

	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Groups    GroupsConfig    `mapstructure:"groups" yaml:"groups"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	Backend      string `mapstructure:"backend" yaml:"backend"`
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// AuthConfig covers password storage and operator API tokens.
type AuthConfig struct {
	PasswordHashing string        `mapstructure:"password_hashing" yaml:"password_hashing"`
	JWTSecret       string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer       string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience     string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL        time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// GroupsConfig tunes the group catalog.
type GroupsConfig struct {
	IDPolicy string `mapstructure:"id_policy" yaml:"id_policy"`
}

// RateLimitConfig limits inbound lines per session. PerSecond 0 disables it.
type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second" yaml:"per_second"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		HTTPAddr:          ":8081",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxClients:        50,
		MaxGroups:         100,
		MaxLineBytes:      4096,
		ReplayDelay:       time.Millisecond,
		LogLevel:          "info",
		Storage: StorageConfig{
			Backend:      BackendFile,
			DataDir:      "data",
			DatabasePath: "roomchat.db",
		},
		Auth: AuthConfig{
			PasswordHashing: "plain",
			JWTSecret:       "change-me",
			JWTIssuer:       "roomchat",
			JWTAudience:     "roomchat-operators",
			TokenTTL:        24 * time.Hour,
		},
		Groups: GroupsConfig{
			IDPolicy: "monotonic",
		},
		RateLimit: RateLimitConfig{
			PerSecond: 20,
			Burst:     40,
		},
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("max_clients must be positive, got %d", c.MaxClients)
	}
	if c.MaxGroups <= 0 {
		return fmt.Errorf("max_groups must be positive, got %d", c.MaxGroups)
	}
	if c.MaxLineBytes < 64 {
		return fmt.Errorf("max_line_bytes must be at least 64, got %d", c.MaxLineBytes)
	}
	if c.IdleTimeout < 0 || c.WriteTimeout < 0 || c.ReplayDelay < 0 {
		return errors.New("timeouts must not be negative")
	}
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.DataDir == "" {
			return errors.New("storage.data_dir must be set for the file backend")
		}
	case BackendSQLite:
		if c.Storage.DatabasePath == "" {
			return errors.New("storage.database_path must be set for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Auth.PasswordHashing {
	case "plain", "bcrypt":
	default:
		return fmt.Errorf("unknown auth.password_hashing %q", c.Auth.PasswordHashing)
	}
	switch c.Groups.IDPolicy {
	case "monotonic", "compact":
	default:
		return fmt.Errorf("unknown groups.id_policy %q", c.Groups.IDPolicy)
	}
	if c.RateLimit.PerSecond < 0 {
		return errors.New("rate_limit.per_second must not be negative")
	}
	return nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Used for CLI flag overrides.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}
}
