//go:build linux

package installer

import (
	"bytes"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	desktopFileUserDir = ".local/share/applications"
	iconUserDir        = ".local/share/icons/hicolor/scalable/apps"
	desktopDirName     = "Desktop"

	launcherTemplate = "templates/launcher.sh"
	desktopTemplate  = "templates/app.desktop"
	iconResource     = "icons/app.svg"

	favoritesSchema = "org.gnome.shell"
	favoritesKey    = "favorite-apps"
)

// Integration writes the artifacts the desktop shell needs to present the
// application as a first-class app: launcher wrapper, icon, menu entry (plus
// a desktop copy) and a pinned dock favorite. The installer runs as root, but
// all user-local artifacts are written into the invoking user's home and
// chowned to them.
type Integration struct {
	cfg  *Config
	run  *Runner
	user string
	home string
	uid  int
	gid  int
}

// NewIntegration resolves the user the desktop artifacts belong to: the
// sudo-invoking user when present, otherwise the current one.
func NewIntegration(cfg *Config, run *Runner) (*Integration, error) {
	name := invokingUser()
	var usr *user.User
	var err error
	if name != "" {
		usr, err = user.Lookup(name)
	} else {
		usr, err = user.Current()
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve the desktop user")
	}
	uid, _ := strconv.Atoi(usr.Uid)
	gid, _ := strconv.Atoi(usr.Gid)
	return &Integration{
		cfg:  cfg,
		run:  run,
		user: usr.Username,
		home: usr.HomeDir,
		uid:  uid,
		gid:  gid,
	}, nil
}

func (g *Integration) desktopFileName() string { return g.cfg.DesktopID + ".desktop" }
func (g *Integration) menuEntryPath() string {
	return filepath.Join(g.home, desktopFileUserDir, g.desktopFileName())
}
func (g *Integration) desktopCopyPath() string {
	return filepath.Join(g.home, desktopDirName, g.desktopFileName())
}
func (g *Integration) iconPath() string {
	return filepath.Join(g.home, iconUserDir, g.cfg.IconName+".svg")
}

// Steps returns the desktop integration checklist. File writes are idempotent
// (a re-run overwrites with identical content); the shell-level steps are
// best-effort and never fail the install. With NoLauncher set only the
// required artifacts are written, no shortcut and no dock pin.
func (g *Integration) Steps() []Step {
	vars := g.cfg.Variables()
	launcherContent := []byte(ExpandVariables(MustGetResource(launcherTemplate), vars))
	entryContent := []byte(ExpandVariables(MustGetResource(desktopTemplate), vars))

	steps := []Step{
		{
			Name:     "launcher wrapper",
			Severity: Fatal,
			Probe:    fileContentProbe(g.cfg.LauncherPath, launcherContent),
			Perform: func() error {
				// System-wide path, stays root-owned on purpose.
				if err := os.MkdirAll(filepath.Dir(g.cfg.LauncherPath), 0755); err != nil {
					return err
				}
				return os.WriteFile(g.cfg.LauncherPath, launcherContent, 0755)
			},
		},
		{
			Name:     "application icon",
			Severity: Fatal,
			Probe: func() (StepStatus, error) {
				icon, err := GetResourceBytes(iconResource)
				if err != nil {
					return StepStatus{}, err
				}
				return fileContentProbe(g.iconPath(), icon)()
			},
			Perform: func() error {
				icon, err := GetResourceBytes(iconResource)
				if err != nil {
					return err
				}
				return g.writeUserFile(g.iconPath(), icon, 0644)
			},
		},
		{
			Name:     "application menu entry",
			Severity: Fatal,
			Probe:    fileContentProbe(g.menuEntryPath(), entryContent),
			Perform: func() error {
				if err := g.writeUserFile(g.menuEntryPath(), entryContent, 0755); err != nil {
					return err
				}
				g.markTrusted(g.menuEntryPath())
				return nil
			},
		},
	}
	if g.cfg.NoLauncher {
		return steps
	}
	return append(steps,
		Step{
			Name:     "desktop shortcut",
			Severity: BestEffort,
			Probe:    fileContentProbe(g.desktopCopyPath(), entryContent),
			Perform: func() error {
				if err := g.writeUserFile(g.desktopCopyPath(), entryContent, 0755); err != nil {
					return err
				}
				g.markTrusted(g.desktopCopyPath())
				return nil
			},
		},
		Step{
			Name:     "dock favorite",
			Severity: BestEffort,
			Probe: func() (StepStatus, error) {
				if !HasCommand("gsettings") {
					return StepStatus{}, errors.New("gsettings not available")
				}
				entries, err := g.readFavorites()
				if err != nil {
					return StepStatus{}, err
				}
				if _, changed := appendFavorite(entries, g.desktopFileName()); !changed {
					return StepStatus{Satisfied: true, Reason: "already pinned"}, nil
				}
				return StepStatus{}, nil
			},
			Perform: func() error { return g.pinToDock() },
		},
	)
}

// writeUserFile writes a file into the desktop user's home, creating parent
// directories and handing ownership over to them.
func (g *Integration) writeUserFile(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := os.Chown(dir, g.uid, g.gid); err != nil {
		logrus.Debugf("chown %s: %v", dir, err)
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return err
	}
	return os.Chown(path, g.uid, g.gid)
}

// markTrusted flags a desktop entry as launchable. Desktop environments
// disagree on the mechanism, so a fixed fallback chain is tried; none of the
// alternatives is required to succeed.
func (g *Integration) markTrusted(path string) {
	RunAlternatives("mark desktop entry trusted", []Alternative{
		{Name: "gio metadata", Run: func() error {
			return g.userRun("gio", "set", path, "metadata::trusted", "true")
		}},
		{Name: "gvfs metadata", Run: func() error {
			return g.userRun("gvfs-set-attribute", path, "metadata::trusted", "true")
		}},
		{Name: "executable bit", Run: func() error {
			return os.Chmod(path, 0755)
		}},
	})
}

// readFavorites reads the shell's pinned-launcher list.
func (g *Integration) readFavorites() ([]string, error) {
	literal, err := g.userOutput("gsettings", "get", favoritesSchema, favoritesKey)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read favorites list")
	}
	return parseFavoritesList(literal), nil
}

// pinToDock performs the read-modify-write against the shell's favorites
// list and then nudges the shell to refresh its display. The refresh
// attempts are cosmetic and non-fatal.
func (g *Integration) pinToDock() error {
	entries, err := g.readFavorites()
	if err != nil {
		return err
	}
	entries, changed := appendFavorite(entries, g.desktopFileName())
	if !changed {
		return nil
	}
	if err := g.userRun("gsettings", "set", favoritesSchema, favoritesKey, formatFavoritesList(entries)); err != nil {
		return errors.Wrap(err, "unable to write favorites list")
	}
	g.refreshShell()
	return nil
}

// unpinFromDock removes the favorite again. Missing tools or an absent entry
// are not errors.
func (g *Integration) unpinFromDock() {
	if !HasCommand("gsettings") {
		return
	}
	entries, err := g.readFavorites()
	if err != nil {
		logrus.Warnf("could not read favorites list: %v", err)
		return
	}
	entries, changed := removeFavorite(entries, g.desktopFileName())
	if !changed {
		return
	}
	if err := g.userRun("gsettings", "set", favoritesSchema, favoritesKey, formatFavoritesList(entries)); err != nil {
		logrus.Warnf("could not update favorites list: %v", err)
	}
}

// refreshShell asks the desktop environment to notice the new entry.
func (g *Integration) refreshShell() {
	RunAlternatives("refresh desktop shell", []Alternative{
		{Name: "update-desktop-database", Run: func() error {
			return g.userRun("update-desktop-database", filepath.Join(g.home, desktopFileUserDir))
		}},
		{Name: "xdg-desktop-menu", Run: func() error {
			return g.userRun("xdg-desktop-menu", "forceupdate")
		}},
		{Name: "icon cache", Run: func() error {
			return g.userRun("gtk-update-icon-cache", "-f", filepath.Join(g.home, ".local/share/icons/hicolor"))
		}},
	})
}

// Remove deletes every artifact Steps creates and unpins the dock favorite.
// All removals are best-effort; a missing target is not an error.
func (g *Integration) Remove() {
	g.unpinFromDock()
	for _, path := range []string{
		g.cfg.LauncherPath,
		g.iconPath(),
		g.menuEntryPath(),
		g.desktopCopyPath(),
	} {
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				logrus.Warnf("could not remove %s: %v", path, err)
			}
			continue
		}
		logrus.Infof("removed %s", path)
	}
	g.refreshShell()
}

// userRun executes a command as the desktop user. Shell settings live in the
// user's session, not root's, so gsettings and friends have to run as them.
func (g *Integration) userRun(name string, args ...string) error {
	if os.Geteuid() == 0 && g.uid != 0 {
		full := append([]string{"-u", g.user, name}, args...)
		return g.run.Run("sudo", full...)
	}
	return g.run.Run(name, args...)
}

func (g *Integration) userOutput(name string, args ...string) (string, error) {
	if os.Geteuid() == 0 && g.uid != 0 {
		full := append([]string{"-u", g.user, name}, args...)
		out, err := g.run.Output("sudo", full...)
		return strings.TrimSpace(out), err
	}
	out, err := g.run.Output(name, args...)
	return strings.TrimSpace(out), err
}

// fileContentProbe reports a step as satisfied when the target file already
// holds exactly the content about to be written.
func fileContentProbe(path string, content []byte) func() (StepStatus, error) {
	return func() (StepStatus, error) {
		existing, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return StepStatus{}, nil
			}
			return StepStatus{}, err
		}
		if bytes.Equal(existing, content) {
			return StepStatus{Satisfied: true, Reason: "up to date"}, nil
		}
		return StepStatus{Reason: "content changed"}, nil
	}
}
