package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"

	"github.com/mdbridge/mdbridge/model"
	"github.com/mdbridge/mdbridge/service/engine"
)

// Option customises the registry service.
type Option func(s *Service)

// WithBasePort sets the first auto-assigned port.
func WithBasePort(port int) Option {
	return func(s *Service) {
		s.allocator = NewPortAllocator(port)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRegisterer registers the worker lifecycle metrics with reg, e.g.
// prometheus.DefaultRegisterer. Without this option the metrics are
// still maintained but not exported anywhere.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.metrics = newMetrics(reg)
	}
}

// WithFS sets the abstract file system used to resolve structure files.
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// Service is the authoritative registry of simulation workers. All
// mutation of the record map and the port allocator is serialised by
// one mutex; worker liveness is read lock-free off the records.
type Service struct {
	mu        sync.RWMutex
	records   map[int]*WorkerRecord
	allocator *PortAllocator

	engines *engine.Engines
	fs      afs.Service

	shuttingDown bool
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	logger  *slog.Logger
	metrics *metrics
	wg      sync.WaitGroup
}

// New creates a registry service resolving engines through engines.
func New(engines *engine.Engines, options ...Option) *Service {
	s := &Service{
		records:    make(map[int]*WorkerRecord),
		engines:    engines,
		shutdownCh: make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	if s.allocator == nil {
		s.allocator = NewPortAllocator(0)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = newMetrics(nil)
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	return s
}

// Start validates cfg, resolves its port, constructs a simulation
// instance and registers the resulting worker. Engine construction may
// be slow (it typically loads the structure file) and therefore runs
// outside the registry lock; a second concurrent Start does not see the
// half-created worker during that window. Caller-supplied ports are
// used verbatim with no collision check - colliding starts surface as
// whatever the engine reports when it fails to occupy the port.
func (s *Service) Start(ctx context.Context, cfg model.SimulationConfig) (*WorkerRecord, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	exists, err := s.fs.Exists(ctx, cfg.StructurePath)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("failed to check structure file %v: %v", cfg.StructurePath, err)}
	}
	if !exists {
		return nil, &ConfigError{Reason: fmt.Sprintf("structure file %v not found", cfg.StructurePath)}
	}
	eng, err := s.engines.Lookup(cfg.Engine)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if cfg.Port == 0 {
		port, aErr := s.allocator.Next()
		if aErr != nil {
			s.mu.Unlock()
			return nil, &ConfigError{Reason: aErr.Error()}
		}
		cfg.Port = port
	}
	s.mu.Unlock()

	instance, err := eng.Load(ctx, &cfg)
	if err != nil {
		return nil, &ConstructionError{Engine: cfg.Engine, Err: err}
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	record := &WorkerRecord{
		ID:        cfg.Port,
		Port:      cfg.Port,
		RunID:     uuid.New().String(),
		Config:    cfg,
		AtomCount: instance.AtomCount(),
		instance:  instance,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	record.state.Store(model.WorkerStarting)

	s.mu.Lock()
	if s.shuttingDown {
		// shutdown raced the construction window; refuse and release
		s.mu.Unlock()
		cancel()
		if cErr := instance.Close(); cErr != nil {
			s.logger.Warn("engine close failed", "server_id", record.ID, "error", cErr)
		}
		return nil, ErrShuttingDown
	}
	s.records[record.ID] = record
	s.mu.Unlock()

	s.metrics.started.Inc()
	s.metrics.active.Inc()
	s.logger.Info("worker registered",
		"server_id", record.ID,
		"port", record.Port,
		"engine", cfg.Engine,
		"num_atoms", record.AtomCount,
		"run_id", record.RunID)

	s.wg.Add(1)
	go s.supervise(workerCtx, record)
	return record, nil
}

// Stop deregisters the worker and closes its engine instance. A close
// error is logged but never prevents removal - stop always proceeds to
// deregistration and is never retried.
func (s *Service) Stop(ctx context.Context, id int) error {
	s.mu.Lock()
	record, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{ID: id}
	}
	delete(s.records, id)
	s.mu.Unlock()

	record.cancel()
	if err := record.instance.Close(); err != nil {
		s.logger.Warn("engine close failed", "server_id", id, "error", err)
	}
	s.metrics.stopped.Inc()
	s.metrics.active.Dec()
	s.logger.Info("worker deregistered", "server_id", id, "run_id", record.RunID)
	return nil
}

// Status returns a snapshot of one worker.
func (s *Service) Status(ctx context.Context, id int) (model.StatusView, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return model.StatusView{}, &NotFoundError{ID: id}
	}
	return record.StatusView(), nil
}

// List returns snapshots of all current workers in unspecified order.
func (s *Service) List(ctx context.Context) []model.StatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	views := make([]model.StatusView, 0, len(s.records))
	for _, record := range s.records {
		views = append(views, record.StatusView())
	}
	return views
}

// ShutdownAll latches the shutting-down flag, signals every worker and
// stops all workers present in the snapshot taken under the lock. A
// worker started concurrently with the snapshot may survive it
// (accepted race). ShutdownAll is idempotent and always succeeds.
func (s *Service) ShutdownAll(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	ids := make([]int, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})

	for _, id := range ids {
		if err := s.Stop(ctx, id); err != nil {
			var notFound *NotFoundError
			if !errors.As(err, &notFound) {
				s.logger.Warn("shutdown stop failed", "server_id", id, "error", err)
			}
		}
	}
	s.logger.Info("registry shut down", "stopped", len(ids))
	return nil
}

// Wait blocks until all supervisor goroutines have exited. Intended for
// a clean daemon exit after ShutdownAll.
func (s *Service) Wait() {
	s.wg.Wait()
}
