package config

import (
	"github.com/garyjia/workflow-engine/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Storage: container.StorageConfig{
			Driver:          c.Storage.Driver,
			Path:            c.Storage.Path,
			MaxOpenConns:    c.Storage.MaxOpenConns,
			MaxIdleConns:    c.Storage.MaxIdleConns,
			ConnMaxLifetime: c.Storage.ConnMaxLifetime,
		},
		Lock: container.LockConfig{
			Driver: c.Lock.Driver,
			TTL:    c.Lock.TTL,
			Redis: container.RedisConfig{
				Addr:     c.Lock.Redis.Addr,
				Password: c.Lock.Redis.Password,
				DB:       c.Lock.Redis.DB,
				Prefix:   c.Lock.Redis.Prefix,
			},
		},
		Lark: container.LarkConfig{
			Enabled:   c.Notifications.Lark.Enabled,
			AppID:     c.Notifications.Lark.AppID,
			AppSecret: c.Notifications.Lark.AppSecret,
			ChatID:    c.Notifications.Lark.ChatID,
			BaseURL:   c.Notifications.Lark.BaseURL,
		},
		Metrics: container.MetricsConfig{
			Enabled:         c.Metrics.Enabled,
			RefreshInterval: c.Metrics.RefreshInterval,
		},
	}
}
