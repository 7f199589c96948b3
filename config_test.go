package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	OpenBoxes()
	config, err := NewConfig()
	require.NoError(t, err)

	assert.NotEmpty(t, config.Product)
	assert.NotEmpty(t, config.Version)
	assert.NotEmpty(t, config.FlakeRef)
	assert.NotEmpty(t, config.LauncherPath)
	assert.NotEmpty(t, config.SandboxScanRoot)
	assert.Greater(t, config.MinDiskGB, int64(0))
	assert.NotEmpty(t, config.BasePackages)
}

func TestConfigVariables(t *testing.T) {
	OpenBoxes()
	config, err := NewConfig()
	require.NoError(t, err)

	vars := config.Variables()
	assert.Equal(t, config.Product, vars["product"])
	assert.Equal(t, config.LauncherPath, vars["launcherPath"])
	// Extra variables from the config file are merged in.
	assert.NotEmpty(t, vars["tagline"])
}
