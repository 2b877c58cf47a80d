package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
)

// BacklogSink receives the periodic report counts
type BacklogSink interface {
	SetBacklog(summary *entity.ReportSummary)
}

// BacklogWorkerConfig holds configuration for the backlog worker
type BacklogWorkerConfig struct {
	PollInterval time.Duration
	QueryTimeout time.Duration
}

// DefaultBacklogWorkerConfig returns default configuration
func DefaultBacklogWorkerConfig() BacklogWorkerConfig {
	return BacklogWorkerConfig{
		PollInterval: 30 * time.Second,
		QueryTimeout: 10 * time.Second,
	}
}

// BacklogWorker periodically counts stored reports by state and stage and
// hands the result to a sink. It reads the store directly and needs no caller
// identity.
type BacklogWorker struct {
	config BacklogWorkerConfig
	repo   port.ReportRepository
	sink   BacklogSink
	logger *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	lastError error
	runs      int
}

// NewBacklogWorker creates a new backlog worker
func NewBacklogWorker(config BacklogWorkerConfig, repo port.ReportRepository, sink BacklogSink, logger *zap.Logger) *BacklogWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultBacklogWorkerConfig().PollInterval
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = DefaultBacklogWorkerConfig().QueryTimeout
	}
	return &BacklogWorker{
		config: config,
		repo:   repo,
		sink:   sink,
		logger: logger,
	}
}

// Start refreshes the counts once and then on every tick until ctx is done or Stop is called
func (w *BacklogWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("backlog worker already running")
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("BacklogWorker started", zap.Duration("poll_interval", w.config.PollInterval))

	go w.pollLoop(ctx)
	return nil
}

// Stop cancels the loop and waits for it to exit
func (w *BacklogWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("BacklogWorker stopped", zap.Int("runs", w.Runs()))
	return nil
}

// Name returns the worker name for identification
func (w *BacklogWorker) Name() string {
	return "BacklogWorker"
}

// Runs returns how many refreshes have completed successfully
func (w *BacklogWorker) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// LastError returns the error of the most recent refresh, if any
func (w *BacklogWorker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}

func (w *BacklogWorker) pollLoop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *BacklogWorker) refresh(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, w.config.QueryTimeout)
	defer cancel()

	reports, err := w.repo.List(queryCtx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastError = err
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Failed to refresh report backlog", zap.Error(err))
		}
		return
	}
	w.sink.SetBacklog(entity.Summarize(reports))
	w.runs++
}
