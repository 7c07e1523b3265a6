// Package container provides dependency injection and lifecycle management
// for the workflow engine.
package container

import (
	"fmt"
	"time"
)

// Storage drivers
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Lock drivers
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Storage backend for definitions and instances
	Storage StorageConfig

	// Lock serializes transitions on one instance
	Lock LockConfig

	// Lark completion notifications
	Lark LarkConfig

	// Metrics configuration
	Metrics MetricsConfig
}

// StorageConfig selects and tunes the workflow store.
type StorageConfig struct {
	// Driver is "memory" or "sqlite"
	Driver string

	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// LockConfig selects the instance locker.
type LockConfig struct {
	// Driver is "local" or "redis"
	Driver string

	// TTL bounds how long a crashed holder keeps an instance locked
	TTL time.Duration

	Redis RedisConfig
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every lock key
	Prefix string
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	Enabled bool

	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string

	// ChatID receives completion notices
	ChatID string

	// BaseURL overrides the open platform endpoint (e.g. for Feishu)
	BaseURL string
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool

	// RefreshInterval is how often the instances-per-state gauge is rebuilt
	RefreshInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:          StorageMemory,
			Path:            "data/workflow.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Lock: LockConfig{
			Driver: LockLocal,
			TTL:    30 * time.Second,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "workflow:",
			},
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			RefreshInterval: 15 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Lock.Driver {
	case LockLocal:
	case LockRedis:
		if c.Lock.Redis.Addr == "" {
			return fmt.Errorf("lock.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown lock.driver %q", c.Lock.Driver)
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("lock.ttl must be positive")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("notifications.lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("notifications.lark.app_secret is required")
		}
		if c.Lark.ChatID == "" {
			return fmt.Errorf("notifications.lark.chat_id is required")
		}
	}

	if c.Metrics.Enabled && c.Metrics.RefreshInterval <= 0 {
		return fmt.Errorf("metrics.refresh_interval must be positive")
	}

	return nil
}
