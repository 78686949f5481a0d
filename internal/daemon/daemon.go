package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"captioner/internal/api"
	"captioner/internal/config"
	"captioner/internal/deps"
	"captioner/internal/logging"
	"captioner/internal/queue"
	"captioner/internal/workflow"
)

// Services groups the API services the daemon exposes over HTTP.
type Services struct {
	Renders     *api.RenderService
	Transcripts *api.TranscriptService
	Media       *api.MediaService
}

// DependencyCheck reports external binary availability for status output.
type DependencyCheck func(ctx context.Context) []deps.Status

// Option customizes a Daemon.
type Option func(*Daemon)

// WithSessionID labels status output with the process session.
func WithSessionID(id string) Option {
	return func(d *Daemon) { d.sessionID = id }
}

// WithDependencyCheck sets how status output reports dependencies.
func WithDependencyCheck(check DependencyCheck) Option {
	return func(d *Daemon) { d.dependencies = check }
}

// WithCloser registers fn to run when the daemon closes, in reverse order.
func WithCloser(fn func() error) Option {
	return func(d *Daemon) {
		if fn != nil {
			d.closers = append(d.closers, fn)
		}
	}
}

// Daemon coordinates the worker pool and API server and enforces single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *queue.Store
	workflow     *workflow.Manager
	services     Services
	sessionID    string
	dependencies DependencyCheck
	closers      []func() error

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	SessionID    string
	Dispatcher   string
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, svc Services, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if svc.Renders == nil || svc.Transcripts == nil || svc.Media == nil {
		return nil, errors.New("daemon requires render, transcript, and media services")
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		services: svc,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the worker pool, re-dispatches
// pending jobs and opens the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another captioner daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if count, err := d.services.Renders.RedispatchPending(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "pending job re-dispatch failed", "redispatch_failed", logging.Error(err))
	} else if count > 0 {
		d.logger.Info("pending jobs re-dispatched", logging.Int("count", count))
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("captioner daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.String("dispatcher", d.cfg.Workflow.Dispatcher),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("captioner daemon stopped")
}

// Close stops the daemon and runs registered closers.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// APIAddress returns the bound API address, or "" when the API is not listening.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		SessionID:    d.sessionID,
		Dispatcher:   d.cfg.Workflow.Dispatcher,
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
	if d.dependencies != nil {
		status.Dependencies = d.dependencies(ctx)
	}
	return status
}
