//go:build linux

package installer

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A profile as the Nix installer leaves it behind.
const profileWithNix = `# ~/.bashrc
export EDITOR=vim

if [ -e /home/dev/.nix-profile/etc/profile.d/nix.sh ]; then . /home/dev/.nix-profile/etc/profile.d/nix.sh; fi # added by Nix installer
if [ -e '/nix/var/nix/profiles/default/etc/profile.d/nix-daemon.sh' ]; then
  . '/nix/var/nix/profiles/default/etc/profile.d/nix-daemon.sh'
fi

alias ll='ls -l'
`

func TestStripNixLines(t *testing.T) {
	stripped, changed := stripNixLines(profileWithNix)
	assert.True(t, changed)
	assert.NotContains(t, stripped, "nix")
	assert.Contains(t, stripped, "export EDITOR=vim")
	assert.Contains(t, stripped, "alias ll='ls -l'")
}

func TestStripNixLinesNoNix(t *testing.T) {
	content := "export PATH=$PATH:/usr/local/bin\n"
	stripped, changed := stripNixLines(content)
	assert.False(t, changed)
	assert.Equal(t, content, stripped)
}

func TestStripNixProfileLinesRewritesInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bashrc")
	require.NoError(t, os.WriteFile(path, []byte(profileWithNix), 0644))

	stripNixProfileLines(path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "nix-daemon.sh")

	// A second pass is a no-op.
	before := string(content)
	stripNixProfileLines(path)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, string(after))
}

func TestStripNixProfileLinesMissingFile(t *testing.T) {
	// Missing profiles are silently skipped.
	stripNixProfileLines(filepath.Join(t.TempDir(), "nope"))
}

func TestUninstallResetsSandboxBehindOutLink(t *testing.T) {
	// Install layout: the install root holds only the "app" out-link into the
	// store path, and the scan root is the install root itself. The reset must
	// reach the helper through the link, before the root is removed.
	store := t.TempDir()
	helper := filepath.Join(store, "libexec", "electron", "chrome-sandbox")
	require.NoError(t, os.MkdirAll(filepath.Dir(helper), 0755))
	require.NoError(t, os.WriteFile(helper, []byte("bin"), 0o755))
	require.NoError(t, os.Chmod(helper, 0o755|os.ModeSetuid))

	installRoot := filepath.Join(t.TempDir(), "helix")
	require.NoError(t, os.MkdirAll(installRoot, 0755))
	require.NoError(t, os.Symlink(store, filepath.Join(installRoot, appLinkName)))

	cfg := &Config{InstallRoot: installRoot, SandboxScanRoot: installRoot}
	uninstaller := NewUninstaller(cfg, NewRunner(false))
	uninstaller.resetSandboxPermissions()
	require.NoError(t, os.RemoveAll(installRoot))

	info, err := os.Stat(helper)
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&os.ModeSetuid, "helper must be back at 755 after uninstall")
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestInvokingUserHome(t *testing.T) {
	current, err := user.Current()
	require.NoError(t, err)

	t.Setenv("SUDO_USER", current.Username)
	assert.Equal(t, current.HomeDir, invokingUserHome())

	t.Setenv("SUDO_USER", "")
	assert.Empty(t, invokingUserHome())
}
