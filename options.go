package rostersync

import (
	"context"
	"log/slog"
)

// Option configures a Service.
type Option func(*Service) error

// Storer is the minimal store interface held by the Service. It covers
// lifecycle operations only; subsystem layers hold the richer lock and
// mirror store interfaces (store.Store embeds all of them).
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// schedulerRunner is an internal interface for the recurring trigger
// lifecycle.
type schedulerRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// poolRunner is an internal interface for the sync worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Service is the central coordinator for program synchronization: the
// recurring trigger, the sync worker pool, and the shared store.
//
// Create one with New() and functional options, then wire subsystems with
// daemon.Build. The Service holds subsystem components via internal
// interfaces to avoid import cycles.
type Service struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	scheduler  schedulerRunner
	pool       poolRunner
	extensions extensionEmitter

	started bool
}

// New creates a new Service with the given options.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Logger returns the service's logger.
func (s *Service) Logger() *slog.Logger { return s.logger }

// Store returns the service's store.
func (s *Service) Store() Storer { return s.store }

// Config returns a copy of the service's configuration.
func (s *Service) Config() Config { return s.config }

// SetScheduler sets the recurring trigger (called by daemon.Build).
func (s *Service) SetScheduler(r schedulerRunner) { s.scheduler = r }

// SetPool sets the sync worker pool (called by daemon.Build).
func (s *Service) SetPool(p poolRunner) { s.pool = p }

// SetExtensions sets the extension emitter (called by daemon.Build).
func (s *Service) SetExtensions(e extensionEmitter) { s.extensions = e }

// Start begins recurring synchronization.
func (s *Service) Start(ctx context.Context) error {
	if s.pool == nil || s.scheduler == nil {
		return ErrNoStore
	}
	if err := s.pool.Start(ctx); err != nil {
		return err
	}
	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) error {
	if s.started {
		if s.scheduler != nil {
			if err := s.scheduler.Stop(ctx); err != nil {
				s.logger.Error("scheduler stop error", "error", err)
			}
		}
		if s.pool != nil {
			if err := s.pool.Stop(ctx); err != nil {
				s.logger.Error("pool stop error", "error", err)
			}
		}
	}
	if s.extensions != nil {
		s.extensions.EmitShutdown(ctx)
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) error {
		s.config = cfg
		return nil
	}
}

// WithConcurrency sets the number of programs synced in parallel.
func WithConcurrency(n int) Option {
	return func(s *Service) error {
		s.config.Concurrency = n
		return nil
	}
}

// WithSyncSchedule sets the recurring trigger schedule expression.
func WithSyncSchedule(expr string) Option {
	return func(s *Service) error {
		s.config.SyncSchedule = expr
		return nil
	}
}

// WithLogger sets the structured logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the service. The store must
// implement Storer at minimum; typically it will be a store.Store which
// embeds the lock and mirror store interfaces.
func WithStore(st Storer) Option {
	return func(s *Service) error {
		s.store = st
		return nil
	}
}
