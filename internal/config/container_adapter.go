package config

import (
	"github.com/garyjia/ohsms/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:            c.Database.Driver,
			Path:              c.Database.Path,
			MaxOpenConns:      c.Database.MaxOpenConns,
			MaxIdleConns:      c.Database.MaxIdleConns,
			ConnMaxLifetime:   c.Database.ConnMaxLifetime,
			BusyTimeout:       c.Database.BusyTimeout,
			MongoURI:          c.Database.MongoURI,
			MongoDatabase:     c.Database.MongoDatabase,
			MongoTransactions: c.Database.MongoTransactions,
		},
		Auth: container.AuthConfig{
			JWTSecret:   c.Auth.JWTSecret,
			Issuer:      c.Auth.Issuer,
			TokenTTL:    c.Auth.TokenTTL,
			Permissions: c.Auth.Permissions,
		},
		Messaging: container.MessagingConfig{
			Enabled:        c.Messaging.Enabled,
			URL:            c.Messaging.URL,
			Queue:          c.Messaging.Queue,
			PublishTimeout: c.Messaging.PublishTimeout,
		},
		Metrics: container.MetricsConfig{
			Enabled:         c.Metrics.Enabled,
			BacklogInterval: c.Metrics.BacklogInterval,
		},
		Server: container.ServerConfig{
			Host:              c.Server.Host,
			Port:              c.Server.Port,
			Mode:              c.Server.Mode,
			ReadTimeout:       c.Server.ReadTimeout,
			WriteTimeout:      c.Server.WriteTimeout,
			RateLimitEnabled:  c.RateLimit.Enabled,
			RequestsPerSecond: c.RateLimit.RequestsPerSecond,
			Burst:             c.RateLimit.Burst,
		},
	}
}
