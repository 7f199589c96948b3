package installer

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// sandboxBinaryName is the Electron setuid helper. It must be owned by root
// with mode 4755, or Chromium refuses to start its sandbox.
const sandboxBinaryName = "chrome-sandbox"

var (
	errSandboxNotFound  = errors.New("sandbox binary not found")
	errSandboxAmbiguous = errors.New("multiple sandbox binary candidates found")

	// The path template Electron build output and nix diagnostics use for the
	// sandbox helper. This is a best-effort heuristic against third-party
	// console text, not a stable contract; the raw output is logged on
	// failure so a human can resolve it manually.
	sandboxPathRe = regexp.MustCompile(`(/[^\s'"` + "`" + `]*/libexec/electron[^\s'"` + "`" + `]*/` + sandboxBinaryName + `)`)
)

// extractPrivilegedPath scrapes the first sandbox-helper path out of free-form
// build output. The boolean is false when no path-like match is present.
func extractPrivilegedPath(raw string) (string, bool) {
	match := sandboxPathRe.FindString(raw)
	return match, match != ""
}

// findSandboxBinary searches a build-output tree for exactly one sandbox
// helper. Zero or multiple candidates are both errors, so the caller can fall
// back to scraping console output.
func findSandboxBinary(root string) (string, error) {
	var candidates []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if !d.IsDir() && d.Name() == sandboxBinaryName {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	switch len(candidates) {
	case 0:
		return "", errSandboxNotFound
	case 1:
		return candidates[0], nil
	default:
		return "", errors.Wrapf(errSandboxAmbiguous, "%d candidates under %s", len(candidates), root)
	}
}

// DiscoverSandboxBinary locates the sandbox helper, trying the structured
// search of the build output tree first and the console-output heuristic
// second. buildOutput may be empty when no console text was captured.
func DiscoverSandboxBinary(resultDir, buildOutput string) (string, error) {
	if resultDir != "" {
		if path, err := findSandboxBinary(resultDir); err == nil {
			return path, nil
		} else {
			logrus.Debugf("structured sandbox search failed: %v", err)
		}
	}
	if path, ok := extractPrivilegedPath(buildOutput); ok {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errSandboxNotFound
}

// PatchSandbox transitions the helper to root ownership with the setuid bit
// set. Failure here is fatal for the install: the application cannot run
// sandboxed without it.
func PatchSandbox(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrap(err, "sandbox binary missing")
	}
	if err := os.Chown(path, 0, 0); err != nil {
		return errors.Wrap(err, "unable to change sandbox ownership to root")
	}
	if err := os.Chmod(path, 0o4755); err != nil {
		return errors.Wrap(err, "unable to set setuid mode on sandbox")
	}
	logrus.Infof("sandbox helper patched: %s is now root:4755", path)
	return nil
}

// ResetSandboxTree reverses the patch: every file under root that is named
// like the sandbox helper and currently carries the setuid bit is reset to
// mode 755. Directory symlinks are followed one level, so a tree reached
// through a build out-link is covered. Individual failures are swallowed; a
// missing tree is not an error.
func ResetSandboxTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			if info, err := os.Stat(resolved); err == nil && info.IsDir() && resolved != filepath.Clean(root) {
				ResetSandboxTree(resolved)
			}
			return nil
		}
		if d.IsDir() || d.Name() != sandboxBinaryName {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Mode()&os.ModeSetuid == 0 {
			return nil
		}
		if err := os.Chmod(path, 0o755); err != nil {
			logrus.Warnf("could not reset %s: %v", path, err)
		} else {
			logrus.Infof("reset sandbox helper mode: %s", path)
		}
		return nil
	})
}
