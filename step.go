package installer

import (
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Severity decides what happens when a step's action fails. Probe failures
// never abort a run; a step whose probe errors is skipped with a warning.
type Severity int

const (
	// Fatal steps abort the whole run on action failure.
	Fatal Severity = iota
	// BestEffort steps degrade to a logged warning on action failure.
	BestEffort
)

type (
	// StepStatus is the result of probing the system for a step's
	// precondition. Status is recomputed from the live system on every run,
	// never cached across steps.
	StepStatus struct {
		Satisfied bool
		Reason    string
	}

	// Step is one installation action. Probe inspects the current system and
	// reports whether the action's effect is already present; Perform applies
	// the effect. Perform must be idempotent so that a re-run after a partial
	// failure is safe.
	Step struct {
		Name     string
		Severity Severity
		Probe    func() (StepStatus, error)
		Perform  func() error
	}

	// Alternative is one entry of an ordered fallback chain. The first
	// alternative whose Run returns nil wins and ends the chain.
	Alternative struct {
		Name string
		Run  func() error
	}
)

var (
	stepDone = color.New(color.FgGreen).SprintFunc()
	stepWarn = color.New(color.FgYellow).SprintFunc()
)

// RunSteps executes steps strictly in order. A satisfied probe skips the
// step, a failed probe skips it with a warning, and a failed action either
// aborts the run or degrades to a warning depending on the step's severity.
func RunSteps(steps []Step) error {
	for _, step := range steps {
		if step.Probe != nil {
			status, err := step.Probe()
			if err != nil {
				logrus.Warnf("%s: precondition check failed, skipping: %v", step.Name, err)
				continue
			}
			if status.Satisfied {
				reason := status.Reason
				if reason == "" {
					reason = "already done"
				}
				logrus.Infof("%s %s: %s", stepDone("✓"), step.Name, reason)
				continue
			}
		}
		logrus.Infof("→ %s", step.Name)
		if err := step.Perform(); err != nil {
			if step.Severity == BestEffort {
				logrus.Warnf("%s %s: %v", stepWarn("!"), step.Name, err)
				continue
			}
			return errors.Wrap(err, step.Name)
		}
		logrus.Infof("%s %s", stepDone("✓"), step.Name)
	}
	return nil
}

// RunAlternatives runs an ordered fallback chain until one alternative
// succeeds. It returns false when the chain is exhausted; the caller decides
// whether that is fatal. Individual failures are logged at debug level only.
func RunAlternatives(name string, alternatives []Alternative) bool {
	for _, alt := range alternatives {
		if err := alt.Run(); err != nil {
			logrus.Debugf("%s: %s failed: %v", name, alt.Name, err)
			continue
		}
		logrus.Debugf("%s: %s succeeded", name, alt.Name)
		return true
	}
	logrus.Warnf("%s: all attempts failed", name)
	return false
}
