package mdbridge

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the daemon configuration.
// It can be populated from YAML or JSON. The zero-value is useful - all
// nested fields inherit their package defaults.
type Config struct {
	Version  string         `json:"version" yaml:"version"`
	Registry RegistryConfig `json:"registry" yaml:"registry"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
}

type RegistryConfig struct {
	// BasePort is the first auto-assigned worker port.
	BasePort int `json:"basePort" yaml:"basePort"`
}

type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// OutputFile receives exported spans; empty means stderr.
	OutputFile string `json:"outputFile" yaml:"outputFile"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: "0.1.0",
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Registry.BasePort < 0 || c.Registry.BasePort > 65535 {
		return fmt.Errorf("registry.basePort %v out of range", c.Registry.BasePort)
	}
	return nil
}

// LoadConfig reads a YAML config from URL through the abstract file
// system and merges it over the defaults.
func LoadConfig(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	ret := DefaultConfig()
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
