package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/queue"
	"captioner/internal/stage"
)

// Manager coordinates render job execution on a bounded worker pool.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	handler      stage.Handler
	pollers      int
	pollInterval time.Duration
	retryDelay   time.Duration
	sessionID    string

	heartbeat *HeartbeatMonitor
	wake      chan struct{}

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
	active  map[string]string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	sessionID         string
	pollInterval      time.Duration
	retryDelay        time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	external          bool
}

// WithSessionID sets the prefix used for worker owner identities.
func WithSessionID(id string) ManagerOption {
	return func(o *managerOptions) {
		o.sessionID = id
	}
}

// WithPollInterval overrides the idle poll interval.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		o.pollInterval = d
	}
}

// WithHeartbeat overrides the lease refresh interval and expiry timeout.
func WithHeartbeat(interval, timeout time.Duration) ManagerOption {
	return func(o *managerOptions) {
		o.heartbeatInterval = interval
		o.heartbeatTimeout = timeout
	}
}

// WithExternalDispatch disables local polling workers; jobs arrive only
// through Execute.
func WithExternalDispatch() ManagerOption {
	return func(o *managerOptions) {
		o.external = true
	}
}

// NewManager constructs a workflow manager sized by cfg.Workflow.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	options := &managerOptions{
		pollInterval:      time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryDelay:        time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeatInterval: time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
		heartbeatTimeout:  time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.sessionID == "" {
		options.sessionID = uuid.NewString()[:8]
	}
	if options.pollInterval <= 0 {
		options.pollInterval = time.Second
	}
	if options.retryDelay <= 0 {
		options.retryDelay = options.pollInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	pollers := cfg.Workflow.WorkerCount
	if options.external {
		pollers = 0
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pollers:      pollers,
		pollInterval: options.pollInterval,
		retryDelay:   options.retryDelay,
		sessionID:    options.sessionID,
		heartbeat:    NewHeartbeatMonitor(store, logger, options.heartbeatInterval, options.heartbeatTimeout),
		wake:         make(chan struct{}, max(cfg.Workflow.WorkerCount, 1)),
		active:       make(map[string]string),
	}
}

// ConfigureHandler registers the stage handler that performs each job.
func (m *Manager) ConfigureHandler(handler stage.Handler) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

// SessionID returns the owner prefix of this manager's workers.
func (m *Manager) SessionID() string {
	return m.sessionID
}
