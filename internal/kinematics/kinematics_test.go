package kinematics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompute_PlainCoupling(t *testing.T) {
	d := Compute(Config{
		XStepsPerRev: 200,
		YStepsPerMM:  100,
		PitchMM:      0.1,
		RPM:          600,
	})

	assert.Equal(t, 10.0, d.YStepsPerTurn)
	assert.InDelta(t, 0.05, d.YStepPerXStep, 1e-9)
	// 600 rpm * 200 steps/rev / 60 = 2000 steps/sec -> 500µs/step
	assert.Equal(t, 500*time.Microsecond, d.XInterval)
}

func TestCompute_ZeroPitchDisablesY(t *testing.T) {
	d := Compute(Config{XStepsPerRev: 6400, YStepsPerMM: 800, PitchMM: 0, RPM: 200})
	assert.Equal(t, 0.0, d.YStepsPerTurn)
	assert.Equal(t, 0.0, d.YStepPerXStep)
}

func TestCompute_ZeroXStepsPerRevYieldsZeroRatio(t *testing.T) {
	d := Compute(Config{XStepsPerRev: 0, YStepsPerMM: 800, PitchMM: 1, RPM: 200})
	assert.Equal(t, 0.0, d.YStepPerXStep)
}

func TestCompute_LowRPMClampsStepRateToOneHertz(t *testing.T) {
	// 1 rpm * 1 step/rev / 60 = 0.0167 steps/sec, below the 1Hz floor.
	d := Compute(Config{XStepsPerRev: 1, YStepsPerMM: 1, PitchMM: 1, RPM: 1})
	assert.Equal(t, time.Second, d.XInterval)
}

func TestCompute_IntervalNeverExceedsOneSecond(t *testing.T) {
	for _, cfg := range []Config{
		{XStepsPerRev: 1, YStepsPerMM: 1, PitchMM: 1, RPM: 1},
		{XStepsPerRev: 5000, YStepsPerMM: 1, PitchMM: 1, RPM: 5000},
	} {
		d := Compute(cfg)
		assert.LessOrEqual(t, d.XInterval, time.Second)
	}
}
