// Package enginetest provides an in-memory engine used by tests across
// the code base. It never touches real simulation code, files or ports.
package enginetest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdbridge/mdbridge/model"
	"github.com/mdbridge/mdbridge/service/engine"
)

// Engine is a configurable engine.Engine fake.
type Engine struct {
	// EngineName defaults to model.DefaultEngine so the fake can stand
	// in for the primary engine.
	EngineName string
	// Atoms is the atom count reported by loaded instances (default 42).
	Atoms int
	// LoadErr, when set, makes every Load fail.
	LoadErr error
	// StepErr, when set, makes every Step of loaded instances fail.
	StepErr error
	// StepDelay paces each Step (zero means immediate).
	StepDelay time.Duration

	mu        sync.Mutex
	instances []*Instance
}

func (e *Engine) Name() string {
	if e.EngineName == "" {
		return model.DefaultEngine
	}
	return e.EngineName
}

func (e *Engine) Load(ctx context.Context, cfg *model.SimulationConfig) (engine.Instance, error) {
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}
	atoms := e.Atoms
	if atoms == 0 {
		atoms = 42
	}
	instance := &Instance{atoms: atoms, stepErr: e.StepErr, delay: e.StepDelay, port: cfg.Port}
	e.mu.Lock()
	e.instances = append(e.instances, instance)
	e.mu.Unlock()
	return instance, nil
}

// Instances returns all instances loaded so far.
func (e *Engine) Instances() []*Instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Instance(nil), e.instances...)
}

// Instance is the fake simulation unit.
type Instance struct {
	atoms   int
	port    int
	stepErr error
	delay   time.Duration
	steps   atomic.Int64
	closes  atomic.Int64
}

func (i *Instance) AtomCount() int {
	return i.atoms
}

func (i *Instance) Port() int {
	return i.port
}

func (i *Instance) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if i.delay > 0 {
		timer := time.NewTimer(i.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if i.stepErr != nil {
		return i.stepErr
	}
	i.steps.Add(1)
	return nil
}

func (i *Instance) Close() error {
	i.closes.Add(1)
	return nil
}

// Steps reports how many steps completed.
func (i *Instance) Steps() int {
	return int(i.steps.Load())
}

// Closes reports how many times Close was invoked.
func (i *Instance) Closes() int {
	return int(i.closes.Load())
}
