package mdbridge

import (
	"context"
	"io"

	"github.com/mdbridge/mdbridge/service/registry"
	"github.com/mdbridge/mdbridge/service/rpc"
)

// Runtime is the running face of the service: the worker registry plus
// the transport loop driving it.
type Runtime struct {
	registry   *registry.Service
	dispatcher *rpc.Dispatcher
}

// Registry returns the worker registry. Process-level shutdown
// notifications should be delivered straight to its ShutdownAll,
// independent of the transport loop.
func (r *Runtime) Registry() *registry.Service {
	return r.registry
}

// Run serves newline-delimited JSON-RPC requests from in to out until
// the stream ends or ctx is cancelled, then shuts all workers down.
func (r *Runtime) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	loop := rpc.NewLoop(in, out, r.dispatcher, r.registry)
	return loop.Run(ctx)
}

// Shutdown stops all workers and waits for their supervisors to exit.
// It is idempotent.
func (r *Runtime) Shutdown(ctx context.Context) {
	_ = r.registry.ShutdownAll(ctx)
	r.registry.Wait()
}
