//go:build linux

package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInstallArgs(t *testing.T) {
	opts := parseInstallArgs([]string{"--auto", "--verbose"})
	assert.True(t, opts.Auto)
	assert.True(t, opts.Verbose)

	opts = parseInstallArgs([]string{"-y"})
	assert.True(t, opts.Auto)
	assert.False(t, opts.Verbose)

	opts = parseInstallArgs([]string{"--yes", "-v", "--lang=de"})
	assert.True(t, opts.Auto)
	assert.True(t, opts.Verbose)
	assert.Equal(t, "de", opts.Lang)

	opts = parseInstallArgs([]string{"--no-launcher"})
	assert.True(t, opts.NoLauncher)
	assert.False(t, opts.Auto)
}

func TestParseInstallArgsIgnoresUnknownFlags(t *testing.T) {
	opts := parseInstallArgs([]string{"--frobnicate", "extra", "--auto"})
	assert.True(t, opts.Auto)
	assert.False(t, opts.Verbose)
}

func TestParseInstallArgsEmpty(t *testing.T) {
	opts := parseInstallArgs(nil)
	assert.False(t, opts.Auto)
	assert.False(t, opts.Verbose)
	assert.Empty(t, opts.Lang)
}
