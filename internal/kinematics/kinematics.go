// Package kinematics derives the per-step timing and coupling ratios the
// motion loop runs from. It is a pure function of configuration: same
// input, same output, no I/O, no shared state (spec.md §4.1).
package kinematics

import "time"

// Config is the subset of winder configuration the calculator needs.
type Config struct {
	XStepsPerRev int     // positive, X microsteps per spindle revolution
	YStepsPerMM  float64 // positive, Y microsteps per millimeter
	PitchMM      float64 // non-negative, Y advance per X revolution (0 disables Y)
	RPM          int     // positive, target spindle rate
}

// Derived holds the values the motion loop reads every iteration.
type Derived struct {
	YStepsPerTurn float64
	YStepPerXStep float64
	XInterval     time.Duration
}

// Compute recalculates Derived from Config. It never errors: the motion
// Engine's setters clamp RPM to [1, 5000] and XStepsPerRev to at least 1,
// a degenerate XStepsPerRev of 0 just yields a zero ratio, and a step
// rate below 1 Hz is clamped to 1 Hz.
func Compute(cfg Config) Derived {
	yStepsPerTurn := cfg.YStepsPerMM * cfg.PitchMM

	var yStepPerXStep float64
	if cfg.XStepsPerRev > 0 {
		yStepPerXStep = yStepsPerTurn / float64(cfg.XStepsPerRev)
	}

	stepsPerSec := float64(cfg.RPM) * float64(cfg.XStepsPerRev) / 60.0
	if stepsPerSec < 1.0 {
		stepsPerSec = 1.0
	}
	interval := time.Duration(float64(time.Second) / stepsPerSec)

	return Derived{
		YStepsPerTurn: yStepsPerTurn,
		YStepPerXStep: yStepPerXStep,
		XInterval:     interval,
	}
}
