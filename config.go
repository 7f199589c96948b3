package installer

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const configFilename = "config.yml"

// Config holds the product description and target paths the installer and
// uninstaller work against. It is compiled into the resource box so that a
// release build is fully self-contained.
type Config struct {
	Product   string `yaml:"product"`
	Version   string `yaml:"version"`
	DesktopID string `yaml:"desktop_id"`

	// FlakeRef is the Nix flake the application is built from.
	FlakeRef string `yaml:"flake_ref"`

	InstallRoot     string `yaml:"install_root"`
	LauncherPath    string `yaml:"launcher_path"`
	IconName        string `yaml:"icon_name"`
	ProcessPattern  string `yaml:"process_pattern"`
	SandboxScanRoot string `yaml:"sandbox_scan_root"`

	MinDiskGB      int64    `yaml:"min_disk_gb"`
	BasePackages   []string `yaml:"base_packages"`
	PurgePackages  []string `yaml:"purge_packages"`
	NodeMajor      int      `yaml:"node_major"`
	NoLauncher     bool     `yaml:"-"`
	ExtraVariables StringMap `yaml:"variables"`
}

// NewConfig reads and parses the embedded config file.
func NewConfig() (*Config, error) {
	configFile, err := GetResource(configFilename)
	if err != nil {
		return nil, err
	}
	config := &Config{}
	if err := yaml.Unmarshal([]byte(configFile), config); err != nil {
		return nil, errors.Wrapf(err, "unable to parse config file %s", configFilename)
	}
	return config, nil
}

// Variables returns the template variable map derived from the config, merged
// with any extra variables defined in the config file itself.
func (c *Config) Variables() StringMap {
	return MergeVariables(StringMap{
		"product":        c.Product,
		"version":        c.Version,
		"desktopID":      c.DesktopID,
		"flakeRef":       c.FlakeRef,
		"installRoot":    c.InstallRoot,
		"launcherPath":   c.LauncherPath,
		"iconName":       c.IconName,
		"processPattern": c.ProcessPattern,
		"minDiskGB":      fmt.Sprintf("%d", c.MinDiskGB),
	}, c.ExtraVariables)
}
