package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/ohsms/internal/application/dispatcher"
	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/infrastructure/auth"
	"github.com/garyjia/ohsms/internal/infrastructure/metrics"
	"github.com/garyjia/ohsms/internal/infrastructure/worker"
	httpapi "github.com/garyjia/ohsms/internal/interfaces/http"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	store     *StoreBundle
	publisher port.EventPublisher
	metrics   *metrics.Metrics
	tokens    *auth.TokenService
	policy    *auth.Policy

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Interfaces
	server *httpapi.Server

	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Store and repositories
// 2. Broker publisher, metrics and auth
// 3. Event dispatcher and subscribers
// 4. Engine and application services
// 5. Background workers
// 6. HTTP server
//
// The HTTP server is built but not listening; call Server().Start().
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization",
		zap.String("driver", c.config.Database.Driver))

	store, err := ProvideStore(ctx, &c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	c.store = store
	c.logger.Info("Store initialized")

	publisher, err := ProvidePublisher(&c.config.Messaging, c.logger)
	if err != nil {
		c.rollback(ctx)
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}
	c.publisher = publisher
	c.metrics = ProvideMetrics(&c.config.Metrics)
	c.tokens, c.policy = ProvideAuth(&c.config.Auth)
	c.logger.Info("External clients initialized",
		zap.Bool("messaging", publisher != nil),
		zap.Bool("metrics", c.metrics != nil))

	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		c.rollback(ctx)
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.dispatcher = disp
	RegisterSubscribers(disp, store.AuditLog, publisher, c.metrics, c.logger)
	c.logger.Info("Dispatcher initialized")

	services, err := ProvideServices(&ServiceDeps{
		Store:      store,
		Authorizer: c.policy,
		Dispatcher: disp,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	if err != nil {
		c.rollback(ctx)
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(&c.config.Metrics, store.Reports, c.metrics, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		c.rollback(ctx)
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers started", zap.Int("count", c.workers.GetWorkerCount()))

	c.server = ProvideHTTPServer(&c.config.Server, services, c.tokens, c.metrics, c.logger)

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// rollback releases whatever Start managed to open before failing.
func (c *Container) rollback(ctx context.Context) {
	if c.dispatcher != nil {
		_ = c.dispatcher.Close()
		c.dispatcher = nil
	}
	if closer, ok := c.publisher.(interface{ Close() error }); ok {
		_ = closer.Close()
		c.publisher = nil
	}
	if c.store != nil {
		_ = c.store.Close(ctx)
		c.store = nil
	}
}

// Close gracefully shuts down all components in reverse order.
// The dispatcher is drained before the publisher and store close so that
// in-flight events still reach the audit log.
func (c *Container) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if closer, ok := c.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			c.logger.Error("Failed to close publisher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		} else {
			c.logger.Info("Publisher closed")
		}
	}

	if c.store != nil {
		if err := c.store.Close(ctx); err != nil {
			c.logger.Error("Failed to close store", zap.Error(err))
			errs = append(errs, fmt.Errorf("close store: %w", err))
		} else {
			c.logger.Info("Store closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	if c.store == nil {
		set("database", ComponentHealth{Healthy: false, Message: "not initialized"})
	} else if err := c.store.Ping(ctx); err != nil {
		set("database", ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)})
	} else {
		set("database", ComponentHealth{Healthy: true, Message: c.store.Driver})
	}

	if c.dispatcher != nil {
		set("dispatcher", ComponentHealth{Healthy: true})
	} else {
		set("dispatcher", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	if c.workers != nil && c.workers.GetWorkerCount() > 0 {
		set("workers", ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		})
	}

	if c.config.Messaging.Enabled {
		if c.publisher != nil {
			set("messaging", ComponentHealth{Healthy: true})
		} else {
			set("messaging", ComponentHealth{Healthy: false, Message: "not connected"})
		}
	}

	return status
}

// Getters for accessing container components

// Store returns the repositories of the configured driver.
func (c *Container) Store() *StoreBundle {
	return c.store
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Tokens returns the bearer token service.
func (c *Container) Tokens() *auth.TokenService {
	return c.tokens
}

// Server returns the HTTP server.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// of the service, workflow, dispatcher and http packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
