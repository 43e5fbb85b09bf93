package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/mdbridge/mdbridge/model"
	"github.com/mdbridge/mdbridge/tracing"
)

// supervise drives one worker on its own goroutine: mark running, step
// until the budget is exhausted or a stop/shutdown signal is observed,
// close the engine instance once, mark stopped. Cancellation is
// cooperative - the signals are checked between steps and a step in
// progress is never preempted. A step failure stops this worker only;
// it never disturbs other workers or the RPC loop.
func (s *Service) supervise(ctx context.Context, record *WorkerRecord) {
	defer s.wg.Done()
	defer close(record.done)

	logger := s.logger.With("server_id", record.ID, "run_id", record.RunID)
	var runErr error
	_, span := tracing.StartSpan(ctx, fmt.Sprintf("worker.run %d", record.ID), "INTERNAL")
	span.WithAttributes(map[string]string{
		"worker.run_id": record.RunID,
		"worker.engine": record.Config.Engine,
	})
	defer func() {
		tracing.EndSpan(span, runErr)
	}()

	record.setState(model.WorkerRunning)
	logger.Info("worker running", "port", record.Port, "num_atoms", record.AtomCount)

	steps := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-s.shutdownCh:
			break loop
		default:
		}
		if record.Config.Steps > 0 && steps >= record.Config.Steps {
			logger.Info("worker step budget exhausted", "steps", steps)
			break
		}
		if err := record.instance.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			runErr = err
			logger.Error("worker step failed", "step", steps, "error", err)
			break
		}
		steps++
	}

	if err := record.instance.Close(); err != nil {
		logger.Warn("engine close failed", "error", err)
	}
	record.setState(model.WorkerStopped)
	logger.Info("worker stopped", "steps", steps)
}
