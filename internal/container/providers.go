package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/ohsms/internal/application/dispatcher"
	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/application/service"
	"github.com/garyjia/ohsms/internal/application/workflow"
	"github.com/garyjia/ohsms/internal/domain/event"
	"github.com/garyjia/ohsms/internal/infrastructure/auth"
	"github.com/garyjia/ohsms/internal/infrastructure/export"
	"github.com/garyjia/ohsms/internal/infrastructure/messaging"
	"github.com/garyjia/ohsms/internal/infrastructure/metrics"
	"github.com/garyjia/ohsms/internal/infrastructure/persistence/mongo"
	"github.com/garyjia/ohsms/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/ohsms/internal/infrastructure/worker"
	httpapi "github.com/garyjia/ohsms/internal/interfaces/http"
	"github.com/garyjia/ohsms/migrations"
	"github.com/garyjia/ohsms/pkg/database"
)

// StoreBundle holds the repositories of the selected driver.
type StoreBundle struct {
	Driver    string
	Reports   port.ReportRepository
	AuditLog  port.AuditLogRepository
	Risks     port.RiskSource
	Forms     port.FormSubmissionSource
	TxManager port.TransactionManager

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping checks the store connection.
func (b *StoreBundle) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

// Close releases the store connection.
func (b *StoreBundle) Close(ctx context.Context) error {
	return b.close(ctx)
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Engine   workflow.ReportEngine
	Reports  service.ReportService
	Notes    service.NoteService
	Activity service.ActivityService
	Exporter port.ReportExporter
}

// ProvideStore opens the configured store. SQLite databases are migrated on open.
func ProvideStore(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case DriverMongo:
		return provideMongoStore(ctx, cfg, logger)
	case DriverSQLite, "":
		return provideSQLiteStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func provideSQLiteStore(cfg *DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	raw, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(raw, logger).Run(migrations.Files)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Database migrations complete", zap.Int("applied", applied))

	db := sqlite.NewDB(raw.DB, logger)
	sources := sqlite.NewSourceRepository(db)

	return &StoreBundle{
		Driver:    DriverSQLite,
		Reports:   sqlite.NewReportRepository(db, logger),
		AuditLog:  sqlite.NewAuditLogRepository(db, logger),
		Risks:     sources,
		Forms:     sources,
		TxManager: db,
		ping:      raw.PingContext,
		close:     func(context.Context) error { return raw.Close() },
	}, nil
}

func provideMongoStore(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	store, err := mongo.Connect(ctx, mongo.Config{
		URI:          cfg.MongoURI,
		Database:     cfg.MongoDatabase,
		Transactions: cfg.MongoTransactions,
	}, logger)
	if err != nil {
		return nil, err
	}

	sources := mongo.NewSourceRepository(store)

	return &StoreBundle{
		Driver:    DriverMongo,
		Reports:   mongo.NewReportRepository(store, logger),
		AuditLog:  mongo.NewAuditLogRepository(store),
		Risks:     sources,
		Forms:     sources,
		TxManager: store,
		ping:      store.Ping,
		close:     store.Close,
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
	), nil
}

// ProvideMetrics returns the collectors, or nil when metrics are disabled.
func ProvideMetrics(cfg *MetricsConfig) *metrics.Metrics {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return metrics.New()
}

// ProvideWorkers registers the background workers. The backlog worker only
// runs when metrics are enabled since the gauges are its only output.
func ProvideWorkers(cfg *MetricsConfig, reports port.ReportRepository, m *metrics.Metrics, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	if m != nil {
		config := worker.DefaultBacklogWorkerConfig()
		if cfg.BacklogInterval > 0 {
			config.PollInterval = cfg.BacklogInterval
		}
		manager.Register(worker.NewBacklogWorker(config, reports, m, logger))
	}
	return manager
}

// ProvidePublisher connects the broker, or returns nil when messaging is disabled.
func ProvidePublisher(cfg *MessagingConfig, logger *zap.Logger) (port.EventPublisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	publisher, err := messaging.Dial(messaging.Config{
		URL:            cfg.URL,
		Queue:          cfg.Queue,
		PublishTimeout: cfg.PublishTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

// ProvideAuth builds the token service and the authorizer.
func ProvideAuth(cfg *AuthConfig) (*auth.TokenService, *auth.Policy) {
	return auth.NewTokenService(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTL), auth.NewPolicy(cfg.Permissions)
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Store      *StoreBundle
	Authorizer port.Authorizer
	Dispatcher dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// ProvideServices creates the engine and the application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	store := deps.Store

	engineOpts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(logger),
	}
	if deps.Metrics != nil {
		engineOpts = append(engineOpts, workflow.WithMetrics(deps.Metrics))
	}

	return &ServiceBundle{
		Engine: workflow.NewEngine(store.Reports, store.TxManager, deps.Authorizer, engineOpts...),
		Reports: service.NewReportService(store.Reports, store.AuditLog, store.TxManager, deps.Authorizer, logger,
			service.WithReportDispatcher(deps.Dispatcher)),
		Notes:    service.NewNoteService(store.Reports, store.TxManager, deps.Authorizer, deps.Dispatcher, logger),
		Activity: service.NewActivityService(store.Reports, store.Risks, store.Forms, deps.Authorizer, logger),
		Exporter: export.NewExcelRegister(deps.Logger),
	}, nil
}

// RegisterSubscribers wires the audit log writer, the broker forwarder and the
// event counter to every event type. publisher and m may be nil.
func RegisterSubscribers(
	d dispatcher.Dispatcher,
	auditLog port.AuditLogRepository,
	publisher port.EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) {
	d.SubscribeNamed(dispatcher.AllEvents, "audit_log",
		service.NewAuditLogSubscriber(auditLog, &zapLoggerAdapter{logger: logger}))

	if publisher != nil {
		d.SubscribeNamed(dispatcher.AllEvents, "amqp_publisher", messaging.Handler(publisher))
	}

	if m != nil {
		d.SubscribeNamed(dispatcher.AllEvents, "event_metrics", func(ctx context.Context, evt *event.Event) error {
			m.ObserveEvent(string(evt.Type))
			return nil
		})
	}
}

// ProvideHTTPServer creates the HTTP adapter.
func ProvideHTTPServer(
	cfg *ServerConfig,
	services *ServiceBundle,
	tokens httpapi.TokenParser,
	m *metrics.Metrics,
	logger *zap.Logger,
) *httpapi.Server {
	var collector httpapi.MetricsCollector
	if m != nil {
		collector = m
	}

	return httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Mode:         cfg.Mode,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RateLimit: httpapi.RateLimitConfig{
			Enabled:           cfg.RateLimitEnabled,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		},
	}, httpapi.Services{
		Engine:   services.Engine,
		Reports:  services.Reports,
		Notes:    services.Notes,
		Activity: services.Activity,
		Exporter: services.Exporter,
	}, tokens, collector, &zapLoggerAdapter{logger: logger})
}
