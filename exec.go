package installer

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// tailLines is how many trailing output lines are kept for error reporting
// when a wrapped command fails.
const tailLines = 20

// Runner executes the external tools the installer wraps (apt, nix, npm and
// friends). Every command inherits the process environment plus Env, which
// carries the "assume yes to everything" switches for the wrapped package
// managers. With Verbose set, long-running commands stream their raw output
// instead of showing a spinner.
type Runner struct {
	Verbose bool
	Env     []string
}

// NewRunner returns a Runner preloaded with the non-interactive environment
// for the wrapped package managers.
func NewRunner(verbose bool) *Runner {
	return &Runner{
		Verbose: verbose,
		Env: []string{
			"DEBIAN_FRONTEND=noninteractive",
			"NIXPKGS_ALLOW_UNFREE=1",
			"npm_config_yes=true",
		},
	}
}

func (r *Runner) command(name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), r.Env...)
	return cmd
}

// Run executes a command to completion and logs its output tail on failure.
func (r *Runner) Run(name string, args ...string) error {
	logrus.Debugf("exec: %s %s", name, strings.Join(args, " "))
	cmd := r.command(name, args...)
	if r.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return errors.Wrapf(cmd.Run(), "%s", name)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		logrus.Errorf("%s failed:\n%s", name, lastLines(string(output), tailLines))
		return errors.Wrapf(err, "%s", name)
	}
	return nil
}

// Output executes a command and returns its combined output as text,
// regardless of the exit status. The error reflects the exit status.
func (r *Runner) Output(name string, args ...string) (string, error) {
	logrus.Debugf("exec: %s %s", name, strings.Join(args, " "))
	output, err := r.command(name, args...).CombinedOutput()
	return string(output), err
}

// RunShell runs a command line through "sh -c". Used for the handful of steps
// that are defined as pipelines (the Node.js and Nix bootstrap scripts).
func (r *Runner) RunShell(script string) error {
	return r.Run("sh", "-c", script)
}

// RunWithProgress runs a long external command under a pty, displaying a
// status spinner until the command finishes (or streaming raw output in
// verbose mode). The full captured output is returned in either case, so
// that callers can scrape diagnostic text out of it. The spinner goroutine
// is purely cosmetic and is always joined before returning.
func (r *Runner) RunWithProgress(label, name string, args ...string) (string, error) {
	logrus.Debugf("exec (pty): %s %s", name, strings.Join(args, " "))
	cmd := r.command(name, args...)
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", errors.Wrapf(err, "failed to start %s under pty", name)
	}
	defer func() { _ = ptmx.Close() }()
	_ = pty.Setsize(ptmx, &pty.Winsize{Rows: 40, Cols: 120})

	spinnerDone := make(chan struct{})
	spinnerJoined := make(chan struct{})
	if !r.Verbose {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(label),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		go func() {
			defer close(spinnerJoined)
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-spinnerDone:
					_ = bar.Finish()
					return
				case <-ticker.C:
					_ = bar.Add(1)
				}
			}
		}()
	} else {
		close(spinnerJoined)
		fmt.Println(label)
	}

	var output strings.Builder
	scanner := bufio.NewScanner(ptmx)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		output.WriteString(line)
		output.WriteByte('\n')
		if r.Verbose {
			fmt.Println(line)
		}
	}
	// A pty read error after the child exits is normal on Linux, so the
	// scanner error is ignored here and the command's own status decides.
	err = cmd.Wait()
	close(spinnerDone)
	<-spinnerJoined

	if err != nil {
		logrus.Errorf("%s failed:\n%s", name, lastLines(output.String(), tailLines))
		return output.String(), errors.Wrapf(err, "%s", name)
	}
	return output.String(), nil
}

// lastLines returns at most n trailing non-empty lines of text.
func lastLines(text string, n int) string {
	lines := []string{}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
