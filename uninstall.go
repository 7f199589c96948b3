//go:build linux

package installer

import (
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Uninstaller reverses the installation. Integration-only mode (the default)
// removes exactly the desktop artifacts and the sandbox permission patch.
// Full mode additionally purges the system packages, strips Nix from the
// filesystem and the shell profiles, and removes the user from the docker
// group. Every removal is best-effort: a missing target is never an error.
type Uninstaller struct {
	cfg *Config
	run *Runner
}

func NewUninstaller(cfg *Config, run *Runner) *Uninstaller {
	return &Uninstaller{cfg: cfg, run: run}
}

// RemoveIntegration deletes the desktop artifacts, the build out-link and
// resets the sandbox helper's permissions.
func (u *Uninstaller) RemoveIntegration() {
	integration, err := NewIntegration(u.cfg, u.run)
	if err != nil {
		logrus.Warnf("cannot resolve desktop user, skipping desktop cleanup: %v", err)
	} else {
		integration.Remove()
	}
	u.resetSandboxPermissions()
	if err := os.RemoveAll(u.cfg.InstallRoot); err != nil {
		logrus.Warnf("could not remove %s: %v", u.cfg.InstallRoot, err)
	}
}

// resetSandboxPermissions clears the setuid patch wherever the helper can
// live: behind the build out-link and anywhere under the configured scan
// root. The out-link lives inside the install root, so this must run before
// that directory is removed.
func (u *Uninstaller) resetSandboxPermissions() {
	if resolved, err := filepath.EvalSymlinks(filepath.Join(u.cfg.InstallRoot, appLinkName)); err == nil {
		ResetSandboxTree(resolved)
	}
	ResetSandboxTree(u.cfg.SandboxScanRoot)
}

// RemoveSystemDependencies purges the packages the installer brought in.
// Callers must have collected an explicit confirmation before calling this.
func (u *Uninstaller) RemoveSystemDependencies() {
	if len(u.cfg.PurgePackages) > 0 {
		args := append([]string{"purge", "-y"}, u.cfg.PurgePackages...)
		if err := u.run.Run("apt-get", args...); err != nil {
			logrus.Warnf("package purge failed: %v", err)
		}
		if err := u.run.Run("apt-get", "autoremove", "-y"); err != nil {
			logrus.Warnf("autoremove failed: %v", err)
		}
	}
	if name := invokingUser(); name != "" {
		if err := u.run.Run("gpasswd", "-d", name, "docker"); err != nil {
			logrus.Warnf("could not remove %s from docker group: %v", name, err)
		}
	}
	u.removeNix()
}

// removeNix strips the Nix installation: the store, the daemon units, the
// profile links and the lines the Nix installer appended to shell profiles.
func (u *Uninstaller) removeNix() {
	for _, unit := range []string{"nix-daemon.service", "nix-daemon.socket"} {
		_ = u.run.Run("systemctl", "stop", unit)
		_ = u.run.Run("systemctl", "disable", unit)
	}
	targets := []string{
		"/nix",
		"/etc/nix",
		"/etc/profile.d/nix.sh",
		"/root/.nix-profile",
		"/root/.nix-defexpr",
		"/root/.nix-channels",
	}
	if home := invokingUserHome(); home != "" {
		targets = append(targets,
			filepath.Join(home, ".nix-profile"),
			filepath.Join(home, ".nix-defexpr"),
			filepath.Join(home, ".nix-channels"),
		)
	}
	for _, target := range targets {
		if err := os.RemoveAll(target); err != nil {
			logrus.Warnf("could not remove %s: %v", target, err)
		}
	}
	profiles := []string{"/etc/bash.bashrc", "/etc/zsh/zshrc", "/etc/profile"}
	if home := invokingUserHome(); home != "" {
		profiles = append(profiles,
			filepath.Join(home, ".bashrc"),
			filepath.Join(home, ".zshrc"),
			filepath.Join(home, ".profile"),
		)
	}
	for _, profile := range profiles {
		stripNixProfileLines(profile)
	}
}

// nixProfileLineRe matches the lines the Nix installer appends to shell
// profile files.
var nixProfileLineRe = regexp.MustCompile(`nix-daemon\.sh|nix-profile|/nix/var/nix`)

// stripNixLines drops every profile line the Nix installer is known to
// append. The boolean reports whether anything was removed.
func stripNixLines(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	changed := false
	for _, line := range lines {
		if nixProfileLineRe.MatchString(line) {
			changed = true
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), changed
}

// stripNixProfileLines rewrites a shell profile file in place, dropping Nix
// loader lines. Missing or unreadable files are silently skipped.
func stripNixProfileLines(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		return
	}
	stripped, changed := stripNixLines(string(content))
	if !changed {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if err := os.WriteFile(path, []byte(stripped), info.Mode().Perm()); err != nil {
		logrus.Warnf("could not rewrite %s: %v", path, err)
	} else {
		logrus.Infof("stripped Nix loader lines from %s", path)
	}
}

// invokingUserHome returns the home directory of the sudo-invoking user.
func invokingUserHome() string {
	name := invokingUser()
	if name == "" {
		return ""
	}
	usr, err := user.Lookup(name)
	if err != nil {
		return ""
	}
	return usr.HomeDir
}
