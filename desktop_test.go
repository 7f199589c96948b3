//go:build linux

package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileContentProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entry.desktop")
	content := []byte("[Desktop Entry]\nName=Helix\n")

	status, err := fileContentProbe(path, content)()
	require.NoError(t, err)
	assert.False(t, status.Satisfied, "missing file is not satisfied")

	require.NoError(t, os.WriteFile(path, content, 0755))
	status, err = fileContentProbe(path, content)()
	require.NoError(t, err)
	assert.True(t, status.Satisfied)

	status, err = fileContentProbe(path, []byte("different"))()
	require.NoError(t, err)
	assert.False(t, status.Satisfied, "stale content must be rewritten")
}

func TestDesktopEntryTemplateRenders(t *testing.T) {
	OpenBoxes()
	config, err := NewConfig()
	require.NoError(t, err)

	entry := ExpandVariables(MustGetResource(desktopTemplate), config.Variables())
	assert.Contains(t, entry, "Name="+config.Product)
	assert.Contains(t, entry, "Exec="+config.LauncherPath)
	assert.Contains(t, entry, "Icon="+config.IconName)
	assert.NotContains(t, entry, "{{", "all template variables must resolve")
}

func TestLauncherTemplateRenders(t *testing.T) {
	OpenBoxes()
	config, err := NewConfig()
	require.NoError(t, err)

	launcher := ExpandVariables(MustGetResource(launcherTemplate), config.Variables())
	assert.Contains(t, launcher, "#!/bin/sh")
	assert.Contains(t, launcher, config.ProcessPattern)
	assert.Contains(t, launcher, "chmod 4755")
	assert.NotContains(t, launcher, "{{")
}

func TestStubTemplateRenders(t *testing.T) {
	OpenBoxes()
	config, err := NewConfig()
	require.NoError(t, err)

	stub := ExpandVariables(MustGetResource(stubTemplate), MergeVariables(
		config.Variables(),
		StringMap{"sentinel": PayloadSentinel},
	))
	assert.Contains(t, stub, PayloadSentinel)
	assert.Contains(t, stub, "base64 -d")
	assert.NotContains(t, stub, "{{")
	// The rendered stub must still be a valid prefix for the container.
	assert.False(t, hasSentinelLine(stub), "the stub quotes the sentinel but must not hold it as a bare line")
}
