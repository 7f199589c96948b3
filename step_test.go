package installer

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStepsSkipsSatisfied(t *testing.T) {
	performed := false
	err := RunSteps([]Step{{
		Name:  "noop",
		Probe: func() (StepStatus, error) { return StepStatus{Satisfied: true}, nil },
		Perform: func() error {
			performed = true
			return nil
		},
	}})
	require.NoError(t, err)
	assert.False(t, performed, "satisfied step must not perform")
}

func TestRunStepsSkipsOnProbeError(t *testing.T) {
	performed := false
	err := RunSteps([]Step{
		{
			Name:  "broken probe",
			Probe: func() (StepStatus, error) { return StepStatus{}, errors.New("probe boom") },
			Perform: func() error {
				performed = true
				return nil
			},
		},
	})
	require.NoError(t, err, "a failing check skips the step, it does not fail the run")
	assert.False(t, performed)
}

func TestRunStepsFatalStopsRun(t *testing.T) {
	laterRan := false
	err := RunSteps([]Step{
		{
			Name:     "fails",
			Severity: Fatal,
			Perform:  func() error { return errors.New("boom") },
		},
		{
			Name: "never reached",
			Perform: func() error {
				laterRan = true
				return nil
			},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fails")
	assert.False(t, laterRan)
}

func TestRunStepsBestEffortContinues(t *testing.T) {
	laterRan := false
	err := RunSteps([]Step{
		{
			Name:     "cosmetic",
			Severity: BestEffort,
			Perform:  func() error { return errors.New("boom") },
		},
		{
			Name: "still runs",
			Perform: func() error {
				laterRan = true
				return nil
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, laterRan)
}

func TestRunStepsIsReRunSafe(t *testing.T) {
	// Simulates the install-twice property: the second pass sees the effect
	// of the first and performs nothing.
	applied := false
	steps := []Step{{
		Name: "install once",
		Probe: func() (StepStatus, error) {
			return StepStatus{Satisfied: applied}, nil
		},
		Perform: func() error {
			applied = true
			return nil
		},
	}}
	require.NoError(t, RunSteps(steps))
	assert.True(t, applied)

	performedAgain := false
	steps[0].Perform = func() error {
		performedAgain = true
		return nil
	}
	require.NoError(t, RunSteps(steps))
	assert.False(t, performedAgain)
}

func TestRunAlternativesStopsAtFirstSuccess(t *testing.T) {
	var ran []string
	ok := RunAlternatives("chain", []Alternative{
		{Name: "a", Run: func() error { ran = append(ran, "a"); return errors.New("no") }},
		{Name: "b", Run: func() error { ran = append(ran, "b"); return nil }},
		{Name: "c", Run: func() error { ran = append(ran, "c"); return nil }},
	})
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestRunAlternativesExhausted(t *testing.T) {
	ok := RunAlternatives("chain", []Alternative{
		{Name: "a", Run: func() error { return errors.New("no") }},
		{Name: "b", Run: func() error { return errors.New("also no") }},
	})
	assert.False(t, ok)
}
