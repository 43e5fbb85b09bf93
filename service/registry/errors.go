package registry

import (
	"errors"
	"fmt"
)

// ErrShuttingDown is returned by Start once ShutdownAll has begun. The
// condition never clears within a process lifetime.
var ErrShuttingDown = errors.New("registry is shutting down")

// NotFoundError reports an operation referencing an unknown server id.
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Server %d not found", e.ID)
}

// ConfigError reports missing or invalid worker configuration. No
// worker is created and registry state is unchanged.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

// ConstructionError reports that the underlying engine failed to
// initialize a simulation instance. Nothing was registered.
type ConstructionError struct {
	Engine string
	Err    error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("failed to start %v engine: %v", e.Engine, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}
