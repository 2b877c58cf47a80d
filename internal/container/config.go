// Package container provides dependency injection and lifecycle management
// for the incident reporting service.
package container

import (
	"fmt"
	"time"
)

// Store drivers
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds all configuration for the Container.
type Config struct {
	Database  DatabaseConfig
	Auth      AuthConfig
	Messaging MessagingConfig
	Metrics   MetricsConfig
	Server    ServerConfig
}

// DatabaseConfig selects and configures the report store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "mongo"
	Driver string

	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration

	// MongoURI and MongoDatabase are used by the mongo driver
	MongoURI          string
	MongoDatabase     string
	MongoTransactions bool
}

// AuthConfig holds token validation settings and the role table overrides.
type AuthConfig struct {
	JWTSecret   string
	Issuer      string
	TokenTTL    time.Duration
	Permissions map[string][]string
}

// MessagingConfig holds the optional RabbitMQ event publisher settings.
type MessagingConfig struct {
	Enabled        bool
	URL            string
	Queue          string
	PublishTimeout time.Duration
}

// MetricsConfig toggles the Prometheus collectors and /metrics.
// BacklogInterval is how often the report gauges are recomputed.
type MetricsConfig struct {
	Enabled         bool
	BacklogInterval time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	RateLimitEnabled  bool
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "data/ohsms.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
			MongoDatabase:   "ohsms",
		},
		Auth: AuthConfig{
			Issuer:   "ohsms",
			TokenTTL: 24 * time.Hour,
		},
		Messaging: MessagingConfig{
			Queue:          "ohsms.report_events",
			PublishTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			BacklogInterval: 30 * time.Second,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			Mode:              "release",
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			RateLimitEnabled:  true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Database.MongoURI == "" {
			return fmt.Errorf("database.mongo_uri is required for the mongo driver")
		}
		if c.Database.MongoDatabase == "" {
			return fmt.Errorf("database.mongo_database is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Messaging.Enabled {
		if c.Messaging.URL == "" {
			return fmt.Errorf("messaging.url is required when messaging is enabled")
		}
		if c.Messaging.Queue == "" {
			return fmt.Errorf("messaging.queue is required when messaging is enabled")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	return nil
}
