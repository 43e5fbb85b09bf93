package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mdbridge/mdbridge/model"
	"github.com/mdbridge/mdbridge/service/engine"
	"github.com/mdbridge/mdbridge/service/engine/enginetest"
)

func writeStructure(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "valid.pdb")
	data := "ATOM      1  N   ALA A   1      11.104   6.134  -6.504\n" +
		"ATOM      2  CA  ALA A   1      11.639   6.071  -5.147\n"
	assert.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func newTestService(t *testing.T, fake *enginetest.Engine, options ...Option) *Service {
	t.Helper()
	if fake == nil {
		fake = &enginetest.Engine{StepDelay: time.Millisecond}
	}
	options = append([]Option{WithBasePort(0)}, options...)
	return New(engine.NewEngines(fake), options...)
}

func waitDone(t *testing.T, record *WorkerRecord) {
	t.Helper()
	select {
	case <-record.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker to stop")
	}
}

func TestStartAssignsSequentialPorts(t *testing.T) {
	service := newTestService(t, nil)
	ctx := context.Background()
	structure := writeStructure(t)

	first, err := service.Start(ctx, model.SimulationConfig{StructurePath: structure})
	assert.NoError(t, err)
	assert.Equal(t, DefaultBasePort, first.ID)
	assert.Equal(t, first.ID, first.Port)
	assert.Equal(t, 42, first.AtomCount)

	second, err := service.Start(ctx, model.SimulationConfig{StructurePath: structure})
	assert.NoError(t, err)
	assert.Equal(t, DefaultBasePort+1, second.ID)

	defer func() {
		_ = service.ShutdownAll(ctx)
	}()
}

func TestStartConcurrentPortsUnique(t *testing.T) {
	service := newTestService(t, nil)
	ctx := context.Background()
	structure := writeStructure(t)

	const n = 20
	ports := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := service.Start(ctx, model.SimulationConfig{StructurePath: structure})
			assert.NoError(t, err)
			ports <- record.Port
		}()
	}
	wg.Wait()
	close(ports)

	seen := map[int]bool{}
	for port := range ports {
		assert.False(t, seen[port], "port %v assigned twice", port)
		seen[port] = true
	}
	assert.Len(t, seen, n)
	_ = service.ShutdownAll(ctx)
}

func TestStartExplicitPort(t *testing.T) {
	service := newTestService(t, nil)
	ctx := context.Background()
	structure := writeStructure(t)

	record, err := service.Start(ctx, model.SimulationConfig{StructurePath: structure, Port: 45000})
	assert.NoError(t, err)
	assert.Equal(t, 45000, record.ID)

	// explicit ports do not advance the allocator
	auto, err := service.Start(ctx, model.SimulationConfig{StructurePath: structure})
	assert.NoError(t, err)
	assert.Equal(t, DefaultBasePort, auto.Port)
	_ = service.ShutdownAll(ctx)
}

func TestStartMissingStructure(t *testing.T) {
	service := newTestService(t, nil)
	ctx := context.Background()

	_, err := service.Start(ctx, model.SimulationConfig{StructurePath: filepath.Join(t.TempDir(), "absent.pdb")})
	var configErr *ConfigError
	assert.True(t, errors.As(err, &configErr))
	assert.Contains(t, err.Error(), "not found")
	assert.Empty(t, service.List(ctx))
}

func TestStartUnknownEngine(t *testing.T) {
	service := newTestService(t, nil)
	ctx := context.Background()

	_, err := service.Start(ctx, model.SimulationConfig{StructurePath: writeStructure(t), Engine: "quantum"})
	var configErr *ConfigError
	assert.True(t, errors.As(err, &configErr))
	assert.Empty(t, service.List(ctx))
}

func TestStartConstructionFailure(t *testing.T) {
	fake := &enginetest.Engine{LoadErr: fmt.Errorf("force field unavailable")}
	service := newTestService(t, fake)
	ctx := context.Background()

	_, err := service.Start(ctx, model.SimulationConfig{StructurePath: writeStructure(t)})
	var constructionErr *ConstructionError
	assert.True(t, errors.As(err, &constructionErr))
	assert.Contains(t, err.Error(), "force field unavailable")
	// no partial registration
	assert.Empty(t, service.List(ctx))
}

func TestStopUnknownID(t *testing.T) {
	service := newTestService(t, nil)
	err := service.Stop(context.Background(), 99999)
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "Server 99999 not found", err.Error())
}

func TestStopRemovesWorker(t *testing.T) {
	fake := &enginetest.Engine{StepDelay: time.Millisecond}
	service := newTestService(t, fake)
	ctx := context.Background()

	record, err := service.Start(ctx, model.SimulationConfig{StructurePath: writeStructure(t)})
	assert.NoError(t, err)

	assert.NoError(t, service.Stop(ctx, record.ID))

	_, err = service.Status(ctx, record.ID)
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))

	waitDone(t, record)
	assert.GreaterOrEqual(t, fake.Instances()[0].Closes(), 1)
}

func TestStepBudgetExhaustion(t *testing.T) {
	fake := &enginetest.Engine{}
	service := newTestService(t, fake)
	ctx := context.Background()

	record, err := service.Start(ctx, model.SimulationConfig{StructurePath: writeStructure(t), Steps: 3})
	assert.NoError(t, err)

	waitDone(t, record)
	assert.Equal(t, 3, fake.Instances()[0].Steps())

	// a finished worker stays queryable as stopped until explicitly removed
	view, err := service.Status(ctx, record.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.WorkerStopped, view.State)
	assert.False(t, view.Running)
	assert.Len(t, service.List(ctx), 1)

	assert.NoError(t, service.Stop(ctx, record.ID))
}

func TestStepFailureStopsWorkerOnly(t *testing.T) {
	failing := &enginetest.Engine{EngineName: "failing", StepErr: fmt.Errorf("integration diverged")}
	healthy := &enginetest.Engine{StepDelay: time.Millisecond}
	service := New(engine.NewEngines(healthy, failing), WithBasePort(0))
	ctx := context.Background()
	structure := writeStructure(t)

	bad, err := service.Start(ctx, model.SimulationConfig{StructurePath: structure, Engine: "failing"})
	assert.NoError(t, err)
	good, err := service.Start(ctx, model.SimulationConfig{StructurePath: structure})
	assert.NoError(t, err)

	waitDone(t, bad)
	view, err := service.Status(ctx, bad.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.WorkerStopped, view.State)

	// the healthy worker is unaffected
	view, err = service.Status(ctx, good.ID)
	assert.NoError(t, err)
	assert.NotEqual(t, model.WorkerStopped, view.State)

	_ = service.ShutdownAll(ctx)
}

func TestShutdownAllIdempotent(t *testing.T) {
	service := newTestService(t, nil)
	ctx := context.Background()
	structure := writeStructure(t)

	_, err := service.Start(ctx, model.SimulationConfig{StructurePath: structure})
	assert.NoError(t, err)
	_, err = service.Start(ctx, model.SimulationConfig{StructurePath: structure})
	assert.NoError(t, err)

	assert.NoError(t, service.ShutdownAll(ctx))
	assert.NoError(t, service.ShutdownAll(ctx))
	assert.Empty(t, service.List(ctx))

	// starts are refused once shutdown began
	_, err = service.Start(ctx, model.SimulationConfig{StructurePath: structure})
	assert.True(t, errors.Is(err, ErrShuttingDown))
	assert.Empty(t, service.List(ctx))

	service.Wait()
}
