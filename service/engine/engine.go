// Package engine defines the boundary to the simulation engines that
// actually integrate physics. The control daemon only ever sees an
// engine through the two interfaces below; everything behind them
// (force fields, frame serving, SDK availability) is the engine's
// concern.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/mdbridge/mdbridge/model"
)

// Engine constructs simulation instances from a validated configuration.
type Engine interface {
	// Name returns the engine selector used in start requests.
	Name() string
	// Load builds a simulation instance bound to cfg.Port. Load may be
	// slow (it typically reads the structure file) and is never invoked
	// under the registry lock. On error no instance exists and nothing
	// needs to be released.
	Load(ctx context.Context, cfg *model.SimulationConfig) (Instance, error)
}

// Instance is one running simulation unit, exclusively owned by the
// worker record that created it.
type Instance interface {
	// AtomCount reports the number of atoms loaded from the structure
	// file. It is fixed at construction time.
	AtomCount() int
	// Step advances the simulation by one integration step.
	Step(ctx context.Context) error
	// Close releases the instance and its port. Both the registry's stop
	// path and the worker's own supervisor invoke Close, so
	// implementations must tolerate repeated calls.
	Close() error
}

// Engines is a registry of named engines.
type Engines struct {
	engines map[string]Engine
	mux     sync.RWMutex
}

// NewEngines creates an engine registry with the supplied engines.
func NewEngines(engines ...Engine) *Engines {
	ret := &Engines{engines: make(map[string]Engine)}
	for _, e := range engines {
		ret.Register(e)
	}
	return ret
}

// Register registers an engine under its name, replacing any previous
// registration.
func (e *Engines) Register(engine Engine) {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.engines[engine.Name()] = engine
}

// Lookup returns the engine registered under name.
func (e *Engines) Lookup(name string) (Engine, error) {
	e.mux.RLock()
	defer e.mux.RUnlock()
	engine, ok := e.engines[name]
	if !ok {
		return nil, fmt.Errorf("engine %q not registered", name)
	}
	return engine, nil
}
