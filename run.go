//go:build linux

package installer

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const logFilename = "helix-installer.log"

// InstallOptions are the installer's commandline switches. Flags are matched
// by presence only; unknown arguments are silently ignored, and the
// self-extracting stub forwards its arguments here unmodified.
type InstallOptions struct {
	Auto       bool // --auto / --yes / -y: skip the confirmation prompt
	Verbose    bool // --verbose / -v: stream raw build output instead of the spinner
	NoLauncher bool // --no-launcher: skip the desktop shortcut and dock pin
	Lang       string
}

func parseInstallArgs(args []string) (opts InstallOptions) {
	for _, arg := range args {
		switch arg {
		case "--auto", "--yes", "-y":
			opts.Auto = true
		case "--verbose", "-v":
			opts.Verbose = true
		case "--no-launcher":
			opts.NoLauncher = true
		}
		if value, ok := strings.CutPrefix(arg, "--lang="); ok {
			opts.Lang = value
		}
	}
	return opts
}

// Run is the installer entry point. It returns the process exit code: 0 on
// success or user cancellation, 1 on any fatal step.
func Run(args []string) int {
	logfile := startLogging(logFilename)
	defer logfile.Close()

	OpenBoxes()
	config, err := NewConfig()
	if err != nil {
		return fatal(err)
	}
	opts := parseInstallArgs(args)
	config.NoLauncher = opts.NoLauncher
	translator := NewTranslatorVar(config.Variables())
	if opts.Lang != "" {
		if err := translator.SetLanguage(opts.Lang); err != nil {
			fmt.Printf("Language '%s' not available\n", opts.Lang)
		}
	}
	run := NewRunner(opts.Verbose)

	fmt.Println(translator.Get("welcome"))
	if !opts.Auto && !confirm(translator.Get("confirm_install")) {
		fmt.Println(translator.Get("cancelled"))
		return 0
	}

	system, err := ProbeSystem()
	if err != nil {
		return fatal(err)
	}
	logrus.Infof("detected %s %s (kernel %s, desktop session %q)",
		system.Platform, system.PlatformVer, system.Kernel, system.DesktopSession)
	if err := system.CheckSupported(); err != nil {
		return fatal(err)
	}
	if err := system.CheckDiskSpace(config.MinDiskGB); err != nil {
		return fatal(err)
	}
	if !osFileWriteAccess(filepath.Dir(config.LauncherPath)) {
		return fatal(fmt.Errorf("no write access to %s", filepath.Dir(config.LauncherPath)))
	}

	if err := RunSteps(DependencySteps(config, run)); err != nil {
		return fatal(err)
	}
	if err := ProvisionApp(config, run); err != nil {
		return fatal(err)
	}
	integration, err := NewIntegration(config, run)
	if err != nil {
		return fatal(err)
	}
	if err := RunSteps(integration.Steps()); err != nil {
		return fatal(err)
	}

	fmt.Println(translator.Get("done"))
	return 0
}

// RunUninstall is the uninstaller entry point. The only flag is --full; both
// the initial confirmation and, in full mode, the second one before package
// removal are required even then.
func RunUninstall(args []string) int {
	logfile := startLogging(logFilename)
	defer logfile.Close()

	OpenBoxes()
	config, err := NewConfig()
	if err != nil {
		return fatal(err)
	}
	translator := NewTranslatorVar(config.Variables())
	full := false
	for _, arg := range args {
		if arg == "--full" {
			full = true
		}
	}
	if os.Geteuid() != 0 {
		return fatal(fmt.Errorf("the uninstaller must be run as root (try sudo)"))
	}

	fmt.Println(translator.Get("uninstall_welcome"))
	if !confirm(translator.Get("uninstall_confirm")) {
		fmt.Println(translator.Get("cancelled"))
		return 0
	}

	run := NewRunner(false)
	uninstaller := NewUninstaller(config, run)
	uninstaller.RemoveIntegration()

	if full {
		if confirm(translator.Get("uninstall_full_confirm")) {
			uninstaller.RemoveSystemDependencies()
		} else {
			fmt.Println(translator.Get("uninstall_full_skipped"))
		}
	}
	fmt.Println(translator.Get("uninstall_done"))
	return 0
}

// RunPackage is the release-builder entry point, used by maintainers rather
// than end users, so it takes ordinary flags.
func RunPackage(args []string) int {
	logfile := startLogging(logFilename)
	defer logfile.Close()

	flags := flag.NewFlagSet("helix-package", flag.ContinueOnError)
	payloadDir := flags.String("payload", "payload", "directory tree to embed in the self-extractor")
	outputDir := flags.String("out", "release", "output directory for the release artifacts")
	verify := flags.Bool("verify", false, "verify the checksum manifest of an existing release directory")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	OpenBoxes()
	config, err := NewConfig()
	if err != nil {
		return fatal(err)
	}
	if *verify {
		if err := VerifyChecksumManifest(*outputDir); err != nil {
			return fatal(err)
		}
		fmt.Println("checksum manifest OK")
		return 0
	}
	if err := BuildRelease(config, ReleaseOptions{
		PayloadDir: *payloadDir,
		OutputDir:  *outputDir,
	}); err != nil {
		return fatal(err)
	}
	return 0
}

// confirm asks an interactive yes/no question, defaulting to no. A
// non-terminal stdin counts as a decline; non-interactive runs are expected
// to pass the auto flag instead.
func confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Printf("%s [y/N] ", prompt)
	reply, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	reply = strings.ToLower(strings.TrimSpace(reply))
	return reply == "y" || reply == "yes"
}

func fatal(err error) int {
	logrus.Error(err)
	return 1
}

// startLogging routes logrus to both the log file and stdout. A log file
// that cannot be opened degrades to stdout-only logging.
func startLogging(logFilename string) io.Closer {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logfile, err := os.OpenFile(logFilename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		logrus.Warnf("Failed to open log file, logging to stdout only: %v", err)
		return io.NopCloser(nil)
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, logfile))
	return logfile
}
