package registry

import (
	"context"
	"sync/atomic"

	"github.com/mdbridge/mdbridge/model"
	"github.com/mdbridge/mdbridge/service/engine"
)

// WorkerRecord is the registry's bookkeeping entry for one worker. ID
// always equals Port. All fields except the liveness state are
// immutable after registration; the state is written only by the
// worker's own supervisor goroutine and may be read from any goroutine.
type WorkerRecord struct {
	ID        int
	Port      int
	RunID     string
	Config    model.SimulationConfig
	AtomCount int

	instance engine.Instance
	cancel   context.CancelFunc
	done     chan struct{}
	state    atomic.Value
}

// State returns the current liveness state.
func (r *WorkerRecord) State() string {
	return r.state.Load().(string)
}

func (r *WorkerRecord) setState(state string) {
	r.state.Store(state)
}

// Done is closed once the worker's supervisor goroutine has exited.
func (r *WorkerRecord) Done() <-chan struct{} {
	return r.done
}

// StatusView builds a read-only snapshot of the record.
func (r *WorkerRecord) StatusView() model.StatusView {
	state := r.State()
	return model.StatusView{
		ServerID:      r.ID,
		Port:          r.Port,
		NumAtoms:      r.AtomCount,
		StructureFile: r.Config.StructurePath,
		State:         state,
		Running:       state != model.WorkerStopped,
	}
}
