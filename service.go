package mdbridge

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"

	"github.com/mdbridge/mdbridge/service/engine"
	"github.com/mdbridge/mdbridge/service/engine/reference"
	"github.com/mdbridge/mdbridge/service/registry"
	"github.com/mdbridge/mdbridge/service/rpc"
)

// Service represents the mdbridge daemon façade. It wires the engine
// registry, the worker registry and the RPC dispatcher from the
// supplied options and hands out a Runtime to drive them.
type Service struct {
	runtime      *Runtime
	config       *Config
	fs           afs.Service
	engines      *engine.Engines
	extraEngines []engine.Engine
	logger       *slog.Logger
	registerer   prometheus.Registerer
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.engines == nil {
		s.engines = engine.NewEngines(reference.NewWithFS(s.fs))
	}
	for _, e := range s.extraEngines {
		s.engines.Register(e)
	}

	registryOptions := []registry.Option{
		registry.WithBasePort(s.config.Registry.BasePort),
		registry.WithLogger(s.logger),
		registry.WithFS(s.fs),
	}
	dispatcherOptions := []rpc.DispatcherOption{
		rpc.WithVersion(s.config.Version),
		rpc.WithLogger(s.logger),
	}
	if s.registerer != nil {
		registryOptions = append(registryOptions, registry.WithRegisterer(s.registerer))
		dispatcherOptions = append(dispatcherOptions, rpc.WithRegisterer(s.registerer))
	}
	s.runtime.registry = registry.New(s.engines, registryOptions...)
	s.runtime.dispatcher = rpc.NewDispatcher(s.runtime.registry, dispatcherOptions...)
}

// Runtime returns the runtime handle.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// New creates an mdbridge service.
func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.init(options)
	return ret
}
