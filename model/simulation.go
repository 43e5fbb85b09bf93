package model

import "fmt"

// Default simulation parameters applied by SimulationConfig.ApplyDefaults.
const (
	DefaultEngine      = "reference"
	DefaultTemperature = 300.0 // kelvin
	DefaultTimestep    = 0.002 // picoseconds
)

// SimulationConfig is a serialisable representation of one worker's
// configuration. It can be populated from JSON-RPC params, YAML, etc.
// The zero-value is useful - all optional fields inherit the package
// defaults via ApplyDefaults.
type SimulationConfig struct {
	StructurePath string  `json:"structure_path" yaml:"structure_path"`
	Engine        string  `json:"engine,omitempty" yaml:"engine,omitempty"`
	Temperature   float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Timestep      float64 `json:"timestep,omitempty" yaml:"timestep,omitempty"`
	// Steps limits how many integration steps the worker runs; zero means
	// the worker runs until stopped.
	Steps int `json:"steps,omitempty" yaml:"steps,omitempty"`
	// Port, when non-zero, is used verbatim instead of an allocated one.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
}

// ApplyDefaults fills unset optional fields with the documented defaults.
func (c *SimulationConfig) ApplyDefaults() {
	if c.Engine == "" {
		c.Engine = DefaultEngine
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Timestep == 0 {
		c.Timestep = DefaultTimestep
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *SimulationConfig) Validate() error {
	if c.StructurePath == "" {
		return fmt.Errorf("structure_path is required")
	}
	if c.Temperature < 0 {
		return fmt.Errorf("temperature must be >= 0, got %v", c.Temperature)
	}
	if c.Timestep <= 0 {
		return fmt.Errorf("timestep must be > 0, got %v", c.Timestep)
	}
	if c.Steps < 0 {
		return fmt.Errorf("steps must be >= 0, got %v", c.Steps)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %v out of range", c.Port)
	}
	return nil
}
