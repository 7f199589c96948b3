//go:build linux

package installer

import (
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/host"
	"golang.org/x/sys/unix"
)

// System is the host snapshot all gating decisions are derived from. It is
// probed fresh on every run; nothing in it is persisted.
type System struct {
	Platform       string // distribution id, e.g. "ubuntu"
	PlatformVer    string // e.g. "24.04"
	Kernel         string
	EUID           int
	DiskFreeBytes  int64
	DesktopSession string
}

// ProbeSystem inspects OS release metadata, free disk space and the current
// privilege level.
func ProbeSystem() (*System, error) {
	info, err := host.Info()
	if err != nil {
		return nil, errors.Wrap(err, "unable to read host information")
	}
	return &System{
		Platform:       info.Platform,
		PlatformVer:    info.PlatformVersion,
		Kernel:         info.KernelVersion,
		EUID:           os.Geteuid(),
		DiskFreeBytes:  osDiskSpace("/"),
		DesktopSession: os.Getenv("XDG_CURRENT_DESKTOP"),
	}, nil
}

// CheckSupported verifies the distribution and privilege requirements. The
// toolkit supports Ubuntu 22.04+ and Debian 12+ and must run as root, since
// nearly every step drives the system package manager.
func (s *System) CheckSupported() error {
	switch s.Platform {
	case "ubuntu":
		if majorVersion(s.PlatformVer) < 22 {
			return errors.Errorf("Ubuntu %s is too old, 22.04 or newer is required", s.PlatformVer)
		}
	case "debian":
		if majorVersion(s.PlatformVer) < 12 {
			return errors.Errorf("Debian %s is too old, 12 or newer is required", s.PlatformVer)
		}
	default:
		return errors.Errorf("unsupported distribution '%s', this installer targets Ubuntu/Debian", s.Platform)
	}
	if s.EUID != 0 {
		return errors.New("this installer must be run as root (try sudo)")
	}
	return nil
}

// CheckDiskSpace verifies that at least minGB gigabytes are available on the
// root filesystem.
func (s *System) CheckDiskSpace(minGB int64) error {
	if s.DiskFreeBytes >= 0 && s.DiskFreeBytes < minGB<<30 {
		return errors.Errorf("not enough free disk space: %.1f GB available, %d GB required",
			float64(s.DiskFreeBytes)/float64(1<<30), minGB)
	}
	return nil
}

// HasCommand reports whether an executable is reachable through PATH.
func HasCommand(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func osFileWriteAccess(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

func osDiskSpace(path string) int64 {
	fs := unix.Statfs_t{}
	if err := unix.Statfs(path, &fs); err != nil {
		return -1
	}
	return int64(fs.Bavail) * fs.Bsize
}

// majorVersion parses the leading number of a release string like "24.04".
func majorVersion(version string) int {
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return major
}
