package mdbridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "version: 0.2.0\nregistry:\n  basePort: 40000\ntracing:\n  enabled: true\n"
	assert.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	config, err := LoadConfig(context.Background(), afs.New(), path)
	assert.NoError(t, err)
	assert.Equal(t, "0.2.0", config.Version)
	assert.Equal(t, 40000, config.Registry.BasePort)
	assert.True(t, config.Tracing.Enabled)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	config, err := LoadConfig(context.Background(), afs.New(), path)
	assert.NoError(t, err)
	assert.Equal(t, DefaultConfig().Version, config.Version)
	assert.Equal(t, 0, config.Registry.BasePort)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("registry:\n  basePort: 99999\n"), 0o644))

	_, err := LoadConfig(context.Background(), afs.New(), path)
	assert.Error(t, err)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(context.Background(), afs.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
