package motion

import (
	"testing"
	"time"

	"github.com/STWuRCA-diy/winder/internal/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *hal.MockGPIO) {
	t.Helper()
	gpio := hal.NewMockGPIO()
	gpio.SetInputLevel(hal.PinYLimit, true) // idle-high, not engaged
	e, err := New(gpio, cfg, nil)
	require.NoError(t, err)
	return e, gpio
}

func fastTestConfig() Config {
	cfg := DefaultConfig()
	cfg.XStepsPerRev = 20
	cfg.RPM = 3000 // high rate so tests don't wait long
	cfg.YStepsPerMM = 10
	cfg.PitchMM = 1
	cfg.BobbinWidthMM = 2
	return cfg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "condition not met before timeout")
}

func TestEngine_PlainRunReachesGoal(t *testing.T) {
	e, _ := newTestEngine(t, fastTestConfig())
	e.SetGoal(2)
	e.Start()
	defer e.Stop(time.Second)

	e.RunFromIdle()
	waitFor(t, 2*time.Second, func() bool {
		return e.Snapshot().Job == JobPause
	})

	snap := e.Snapshot()
	assert.Equal(t, 2, snap.TurnsX)
}

func TestEngine_GoalReachedCallbackFiresOnce(t *testing.T) {
	e, _ := newTestEngine(t, fastTestConfig())
	e.SetGoal(1)

	var fired int
	done := make(chan struct{})
	e.SetGoalReachedHandler(func(turns int) {
		fired++
		close(done)
	})

	e.Start()
	defer e.Stop(time.Second)
	e.RunFromIdle()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail(t, "goal callback never fired")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, fired)
}

func TestEngine_LayerBounceReversesAtBobbinEdge(t *testing.T) {
	cfg := fastTestConfig()
	cfg.BobbinWidthMM = 0.3 // tiny width forces a quick bounce
	e, _ := newTestEngine(t, cfg)
	e.SetGoal(10)
	e.Start()
	defer e.Stop(time.Second)
	e.RunFromIdle()

	waitFor(t, 2*time.Second, func() bool {
		snap := e.Snapshot()
		return snap.YPositionMM() > 0 && snap.Config.XDirSign != 0
	})

	// Running long enough at a tiny bobbin width should force at least one
	// direction reversal; yPosSteps should stay within [0, width*stepsPerMM].
	time.Sleep(50 * time.Millisecond)
	snap := e.Snapshot()
	maxSteps := int(cfg.BobbinWidthMM * cfg.YStepsPerMM)
	assert.LessOrEqual(t, snap.YPosSteps, maxSteps+1)
	assert.GreaterOrEqual(t, snap.YPosSteps, 0)
}

func TestEngine_StopPreservesCountersThenResumeContinues(t *testing.T) {
	e, _ := newTestEngine(t, fastTestConfig())
	e.SetGoal(100)
	e.Start()
	defer e.Stop(time.Second)
	e.RunFromIdle()

	waitFor(t, time.Second, func() bool { return e.Snapshot().TurnsX >= 1 })
	e.StopRequest()
	time.Sleep(200 * time.Millisecond) // let the stop grace elapse
	mid := e.Snapshot()
	assert.Equal(t, JobPause, mid.Job)

	e.Resume()
	waitFor(t, time.Second, func() bool { return e.Snapshot().TurnsX > mid.TurnsX })
}

func TestEngine_RunFromPauseIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, fastTestConfig())
	e.SetGoal(1)
	e.Start()
	defer e.Stop(time.Second)
	e.RunFromIdle()

	waitFor(t, 2*time.Second, func() bool { return e.Snapshot().Job == JobPause })
	turnsAtPause := e.Snapshot().TurnsX

	e.RunFromIdle() // must be a no-op while paused
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, JobPause, e.Snapshot().Job)
	assert.Equal(t, turnsAtPause, e.Snapshot().TurnsX)
}

func TestEngine_YZeroOnLimitSwitchEngage(t *testing.T) {
	e, gpio := newTestEngine(t, fastTestConfig())
	e.Start()
	defer e.Stop(time.Second)

	e.YZero()
	require.Equal(t, 0, e.Snapshot().YPosSteps)

	// Drive Y off zero, then engage the limit switch; the next scan should
	// re-home to zero exactly once (spec.md "one-shot Y-home re-arm").
	e.SetGoal(-1)
	e.RunFromIdle()
	waitFor(t, time.Second, func() bool { return e.Snapshot().YPosSteps != 0 || e.Snapshot().TurnsX > 0 })
	e.StopRequest()
	time.Sleep(150 * time.Millisecond)

	gpio.SetInputLevel(hal.PinYLimit, false) // active-low engaged
	waitFor(t, time.Second, func() bool { return e.Snapshot().YPosSteps == 0 })
	gpio.SetInputLevel(hal.PinYLimit, true)
}

func TestEngine_SetXRevSplitsSignAndMagnitude(t *testing.T) {
	e, _ := newTestEngine(t, fastTestConfig())
	e.SetXRev(-400)
	snap := e.Snapshot()
	assert.Equal(t, -1, snap.Config.XDirSign)
	assert.Equal(t, 400, snap.Config.XStepsPerRev)
}

func TestEngine_SetRPMClampsRange(t *testing.T) {
	e, _ := newTestEngine(t, fastTestConfig())
	e.SetRPM(999999)
	assert.Equal(t, 5000, e.Snapshot().Config.RPM)
	e.SetRPM(-5)
	assert.Equal(t, 1, e.Snapshot().Config.RPM)
}
