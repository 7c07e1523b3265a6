package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Lock          LockConfig          `mapstructure:"lock"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Logger        LoggerConfig        `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StorageConfig holds workflow store configuration
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LockConfig holds instance lock configuration
type LockConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
	Redis  RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// NotificationsConfig groups outbound notification channels
type NotificationsConfig struct {
	Lark LarkConfig `mapstructure:"lark"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	ChatID    string `mapstructure:"chat_id"`
	BaseURL   string `mapstructure:"base_url"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string         `mapstructure:"level"`
	OutputPath string         `mapstructure:"output_path"`
	Format     string         `mapstructure:"format"`
	Service    string         `mapstructure:"service"`
	Sampling   SamplingConfig `mapstructure:"sampling"`
}

// SamplingConfig limits repeated log lines per second; zero initial disables it
type SamplingConfig struct {
	Initial    int `mapstructure:"initial"`
	Thereafter int `mapstructure:"thereafter"`
}

// EnvPrefix prefixes every environment override, e.g. WORKFLOW_SERVER_PORT
const EnvPrefix = "WORKFLOW"

// Load reads configuration from configPath (optional), .env files and
// environment variables, in increasing order of precedence. envFiles that do
// not exist are skipped.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if err := gotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Storage defaults
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.path", "data/workflow.db")
	v.SetDefault("storage.max_open_conns", 1)
	v.SetDefault("storage.max_idle_conns", 1)
	v.SetDefault("storage.conn_max_lifetime", 5*time.Minute)

	// Lock defaults
	v.SetDefault("lock.driver", "local")
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("lock.redis.addr", "localhost:6379")
	v.SetDefault("lock.redis.password", "")
	v.SetDefault("lock.redis.db", 0)
	v.SetDefault("lock.redis.prefix", "workflow:")

	// Lark defaults
	v.SetDefault("notifications.lark.enabled", false)
	v.SetDefault("notifications.lark.app_id", "")
	v.SetDefault("notifications.lark.app_secret", "")
	v.SetDefault("notifications.lark.chat_id", "")
	v.SetDefault("notifications.lark.base_url", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.refresh_interval", 15*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.service", "workflow-engine")
	v.SetDefault("logger.sampling.initial", 0)
	v.SetDefault("logger.sampling.thereafter", 0)
}

// bindEnvVars binds the conventional unprefixed names for credentials
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"notifications.lark.app_id":     {"WORKFLOW_NOTIFICATIONS_LARK_APP_ID", "LARK_APP_ID"},
		"notifications.lark.app_secret": {"WORKFLOW_NOTIFICATIONS_LARK_APP_SECRET", "LARK_APP_SECRET"},
		"notifications.lark.chat_id":    {"WORKFLOW_NOTIFICATIONS_LARK_CHAT_ID", "LARK_CHAT_ID"},
		"lock.redis.addr":               {"WORKFLOW_LOCK_REDIS_ADDR", "REDIS_ADDR"},
		"lock.redis.password":           {"WORKFLOW_LOCK_REDIS_PASSWORD", "REDIS_PASSWORD"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	if c.Logger.Sampling.Initial < 0 || c.Logger.Sampling.Thereafter < 0 {
		return fmt.Errorf("logger.sampling values cannot be negative")
	}

	return c.ToContainerConfig().Validate()
}
