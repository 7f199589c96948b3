//go:build linux

package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	nodeSetupScript  = "curl -fsSL https://deb.nodesource.com/setup_%d.x | bash -"
	nixInstallScript = "curl -fsSL https://nixos.org/nix/install | sh -s -- --daemon --yes"
	nixConfPath      = "/etc/nix/nix.conf"
	nixConfFeatures  = "experimental-features = nix-command flakes"
)

// DependencySteps returns the ordered system-package steps. Every step is
// gated by a live probe so a re-run on an already-provisioned system is a
// sequence of no-ops.
func DependencySteps(cfg *Config, run *Runner) []Step {
	return []Step{
		{
			Name:     "base toolchain",
			Severity: Fatal,
			Probe: func() (StepStatus, error) {
				for _, pkg := range cfg.BasePackages {
					if !packageInstalled(run, pkg) {
						return StepStatus{Reason: pkg + " missing"}, nil
					}
				}
				return StepStatus{Satisfied: true, Reason: "all packages installed"}, nil
			},
			Perform: func() error {
				if err := run.Run("apt-get", "update"); err != nil {
					return err
				}
				args := append([]string{"install", "-y"}, cfg.BasePackages...)
				return run.Run("apt-get", args...)
			},
		},
		{
			Name:     "Node.js",
			Severity: Fatal,
			Probe: func() (StepStatus, error) {
				major, err := nodeMajor(run)
				if err != nil {
					return StepStatus{Reason: "node not installed"}, nil
				}
				if major < cfg.NodeMajor {
					return StepStatus{Reason: fmt.Sprintf("node %d too old, want %d", major, cfg.NodeMajor)}, nil
				}
				return StepStatus{Satisfied: true, Reason: fmt.Sprintf("node %d present", major)}, nil
			},
			Perform: func() error {
				if err := run.RunShell(fmt.Sprintf(nodeSetupScript, cfg.NodeMajor)); err != nil {
					return err
				}
				return run.Run("apt-get", "install", "-y", "nodejs")
			},
		},
		{
			Name:     "Docker",
			Severity: Fatal,
			Probe: func() (StepStatus, error) {
				if HasCommand("docker") {
					return StepStatus{Satisfied: true, Reason: "docker present"}, nil
				}
				return StepStatus{}, nil
			},
			Perform: func() error {
				if err := run.Run("apt-get", "install", "-y", "docker.io", "docker-compose-v2"); err != nil {
					return err
				}
				if user := invokingUser(); user != "" {
					// Group membership is a convenience, not a requirement.
					if err := run.Run("usermod", "-aG", "docker", user); err != nil {
						logrus.Warnf("could not add %s to the docker group: %v", user, err)
					}
				}
				return nil
			},
		},
		{
			Name:     "Nix",
			Severity: Fatal,
			Probe: func() (StepStatus, error) {
				if HasCommand("nix") {
					return StepStatus{Satisfied: true, Reason: "nix present"}, nil
				}
				if _, err := os.Stat("/nix/store"); err == nil {
					return StepStatus{Satisfied: true, Reason: "/nix/store exists"}, nil
				}
				return StepStatus{}, nil
			},
			Perform: func() error {
				return run.RunShell(nixInstallScript)
			},
		},
		{
			Name:     "Nix flakes support",
			Severity: Fatal,
			Probe: func() (StepStatus, error) {
				content, err := os.ReadFile(nixConfPath)
				if err != nil {
					if os.IsNotExist(err) {
						return StepStatus{Reason: "nix.conf missing"}, nil
					}
					return StepStatus{}, err
				}
				if strings.Contains(string(content), "nix-command") {
					return StepStatus{Satisfied: true, Reason: "flakes enabled"}, nil
				}
				return StepStatus{}, nil
			},
			Perform: func() error {
				return appendLineOnce(nixConfPath, nixConfFeatures)
			},
		},
	}
}

// packageInstalled asks dpkg whether a package is in the "installed" state.
func packageInstalled(run *Runner, pkg string) bool {
	output, err := run.Output("dpkg-query", "-W", "-f", "${Status}", pkg)
	return err == nil && strings.Contains(output, "install ok installed")
}

var nodeVersionRe = regexp.MustCompile(`v(\d+)\.`)

// nodeMajor returns the major version of the installed node binary.
func nodeMajor(run *Runner) (int, error) {
	output, err := run.Output("node", "--version")
	if err != nil {
		return 0, err
	}
	match := nodeVersionRe.FindStringSubmatch(output)
	if match == nil {
		return 0, errors.Errorf("unrecognized node version output: %q", strings.TrimSpace(output))
	}
	return strconv.Atoi(match[1])
}

// invokingUser returns the user who ran the installer through sudo, if any.
func invokingUser() string {
	return os.Getenv("SUDO_USER")
}

// appendLineOnce appends a line to a file unless an identical line is already
// present. Missing files and parent directories are created.
func appendLineOnce(path, line string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, existing := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(existing) == line {
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	text := string(content)
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return os.WriteFile(path, []byte(text+line+"\n"), 0644)
}
