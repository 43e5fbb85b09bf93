package mdbridge

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"

	"github.com/mdbridge/mdbridge/service/engine"
	"github.com/mdbridge/mdbridge/tracing"
)

// Option customises the mdbridge service.
type Option func(s *Service)

// WithConfig sets the daemon configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithLogger sets the structured logger shared by all service layers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFS sets the abstract file system used for structure files and
// config loading, e.g. an embed-backed service in tests.
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithEngines replaces the engine registry entirely.
func WithEngines(engines *engine.Engines) Option {
	return func(s *Service) {
		s.engines = engines
	}
}

// WithEngine registers an additional engine alongside the built-in one.
func WithEngine(e engine.Engine) Option {
	return func(s *Service) {
		s.extraEngines = append(s.extraEngines, e)
	}
}

// WithRegisterer exports worker and RPC metrics through reg, e.g.
// prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.registerer = reg
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty
// spans are written to stderr. Safe to apply more than once - the first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}
