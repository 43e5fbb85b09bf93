// Package reference provides the built-in engine used when a start
// request does not select anything else. It loads a PDB structure
// through the abstract file system, reserves the worker port with a
// real TCP listener and advances in wall-clock paced steps. It serves
// no frames - it exists so that the control plane is fully exercisable
// without a molecular-dynamics SDK on the host.
package reference

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"

	"github.com/mdbridge/mdbridge/model"
	"github.com/mdbridge/mdbridge/service/engine"
)

// Engine implements engine.Engine backed by viant/afs, so structure
// files may live on any scheme afs understands (file, embed, mem, s3).
type Engine struct {
	fs afs.Service
}

// New creates a reference engine using the default afs service.
func New() *Engine {
	return &Engine{fs: afs.New()}
}

// NewWithFS creates a reference engine with a custom file service,
// mainly for tests using the embed or mem schemes.
func NewWithFS(fs afs.Service) *Engine {
	return &Engine{fs: fs}
}

// Name returns the engine selector.
func (e *Engine) Name() string {
	return model.DefaultEngine
}

// Load resolves the structure file, counts its atom records and binds
// the worker port. A bind failure (for example an explicit port already
// in use) surfaces here as a construction error.
func (e *Engine) Load(ctx context.Context, cfg *model.SimulationConfig) (engine.Instance, error) {
	exists, err := e.fs.Exists(ctx, cfg.StructurePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check structure file %v: %w", cfg.StructurePath, err)
	}
	if !exists {
		return nil, fmt.Errorf("structure file %v not found", cfg.StructurePath)
	}
	data, err := e.fs.DownloadWithURL(ctx, cfg.StructurePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read structure file %v: %w", cfg.StructurePath, err)
	}
	atoms := countAtomRecords(data)
	if atoms == 0 {
		return nil, fmt.Errorf("structure file %v contains no atom records", cfg.StructurePath)
	}
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind port %v: %w", cfg.Port, err)
	}
	return &instance{
		atoms:    atoms,
		interval: stepInterval(cfg.Timestep),
		listener: listener,
	}, nil
}

// stepInterval maps the integration timestep (picoseconds) onto a
// wall-clock pacing interval, treating one picosecond as one second.
func stepInterval(timestep float64) time.Duration {
	d := time.Duration(timestep * float64(time.Second))
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}

type instance struct {
	atoms     int
	interval  time.Duration
	listener  net.Listener
	closeOnce sync.Once
	closeErr  error
}

func (i *instance) AtomCount() int {
	return i.atoms
}

// Step waits one pacing interval, honoring cancellation.
func (i *instance) Step(ctx context.Context) error {
	timer := time.NewTimer(i.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close releases the port. Safe to call more than once.
func (i *instance) Close() error {
	i.closeOnce.Do(func() {
		i.closeErr = i.listener.Close()
	})
	return i.closeErr
}

// countAtomRecords counts ATOM and HETATM records of a PDB payload.
func countAtomRecords(data []byte) int {
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM") {
			count++
		}
	}
	return count
}
