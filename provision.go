package installer

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// appLinkName is the out-link the flake build leaves under the install root.
// The launcher resolves the application binary through it, so re-provisioning
// atomically switches to the new store path.
const appLinkName = "app"

// ProvisionApp builds the application from its Nix flake and patches the
// Electron sandbox helper in the build output.
//
// A first build attempt that fails can still be useful: nix prints the
// sandbox path in its diagnostics when the helper's permissions are what
// broke the run. In that case the helper is patched and the build retried
// once. Any other build failure is fatal.
func ProvisionApp(cfg *Config, run *Runner) error {
	if err := os.MkdirAll(cfg.InstallRoot, 0755); err != nil {
		return errors.Wrap(err, "unable to create install root")
	}
	outLink := filepath.Join(cfg.InstallRoot, appLinkName)

	output, err := nixBuild(cfg, run, outLink)
	if err != nil {
		path, ok := extractPrivilegedPath(output)
		if !ok {
			return errors.Wrap(err, "flake build failed")
		}
		logrus.Infof("build diagnostics point at sandbox helper %s, patching and retrying", path)
		if patchErr := PatchSandbox(path); patchErr != nil {
			return patchErr
		}
		if output, err = nixBuild(cfg, run, outLink); err != nil {
			return errors.Wrap(err, "flake build failed after sandbox patch")
		}
	}

	resultDir, err := filepath.EvalSymlinks(outLink)
	if err != nil {
		return errors.Wrap(err, "build produced no usable out-link")
	}
	sandboxPath, err := DiscoverSandboxBinary(resultDir, output)
	if err != nil {
		logrus.Errorf("could not locate the sandbox helper; raw build output follows:\n%s",
			lastLines(output, tailLines))
		return err
	}
	return PatchSandbox(sandboxPath)
}

func nixBuild(cfg *Config, run *Runner, outLink string) (string, error) {
	return run.RunWithProgress(
		"Building "+cfg.Product+" (this can take a while)",
		"nix", "--extra-experimental-features", "nix-command flakes",
		"build", cfg.FlakeRef, "--out-link", outLink,
	)
}
