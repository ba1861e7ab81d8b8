package controller

import (
	"testing"
	"time"

	"github.com/STWuRCA-diy/winder/internal/hal"
	"github.com/STWuRCA-diy/winder/internal/motion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T) (*Controller, *motion.Engine, *hal.MockGPIO) {
	t.Helper()
	gpio := hal.NewMockGPIO()
	gpio.SetInputLevel(hal.PinYLimit, true)
	cfg := motion.DefaultConfig()
	cfg.XStepsPerRev = 20
	cfg.RPM = 3000
	cfg.YStepsPerMM = 10
	cfg.PitchMM = 1
	cfg.BobbinWidthMM = 2
	e, err := motion.New(gpio, cfg, nil)
	require.NoError(t, err)
	c := New(e, nil)
	e.Start()
	t.Cleanup(func() { e.Stop(time.Second) })
	return c, e, gpio
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

func TestBuildSectionPlan_DistributesRemainderToEarliestSections(t *testing.T) {
	plan := BuildSectionPlan(10, 3)
	assert.Equal(t, []int{4, 3, 3}, plan)

	sum := 0
	for _, v := range plan {
		sum += v
	}
	assert.Equal(t, 10, sum)
}

func TestBuildSectionPlan_EvenDivision(t *testing.T) {
	assert.Equal(t, []int{5, 5}, BuildSectionPlan(10, 2))
}

func TestController_StartWithoutSections(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Start(3, 0, false))

	waitFor(t, 2*time.Second, func() bool { return c.Snapshot().State == "PAUSE" })
	assert.Equal(t, 3, c.Snapshot().CurrentTurns)
}

func TestController_StartRejectsNonPositiveTotal(t *testing.T) {
	c, _, _ := newTestController(t)
	assert.Error(t, c.Start(0, 0, false))
	assert.Error(t, c.Start(-1, 2, false))
}

func TestController_ThreeSectionPlanWithAutoNext(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Start(10, 3, true))

	waitFor(t, 5*time.Second, func() bool {
		s := c.Snapshot()
		return s.SectionPtr == 3 && s.State == "PAUSE"
	})

	final := c.Snapshot()
	assert.Equal(t, 10, final.CurrentTurns)
	assert.True(t, final.SectionsMode)
	assert.Equal(t, 3, final.SectionPlanLen)
}

func TestController_ResumeUnderSectionsAdvancesManually(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Start(10, 3, false)) // no auto-next: stays PAUSE between sections

	waitFor(t, 2*time.Second, func() bool {
		s := c.Snapshot()
		return s.SectionPtr == 1 && s.State == "PAUSE"
	})
	firstSectionTurns := c.Snapshot().CurrentTurns
	assert.Equal(t, 4, firstSectionTurns) // plan[0] == 4

	c.Resume()
	waitFor(t, 2*time.Second, func() bool {
		s := c.Snapshot()
		return s.SectionPtr == 2 && s.State == "PAUSE"
	})
	assert.Equal(t, 7, c.Snapshot().CurrentTurns) // 4 + plan[1]=3
}

func TestController_YZeroCalledBetweenSections(t *testing.T) {
	c, e, _ := newTestController(t)
	e.SetXRev(20)
	require.NoError(t, c.Start(10, 3, true))

	waitFor(t, 5*time.Second, func() bool { return c.Snapshot().SectionPtr == 3 })
	// Plan [4, 3, 3] at 0.5 Y steps per X step emits 39, 30 and 29 Y steps
	// (the goal step of each section skips Y). With yzero at both section
	// boundaries Y ends at 11; without it the same steps would end at 18.
	assert.GreaterOrEqual(t, e.Snapshot().YPosSteps, 0)
	assert.Equal(t, 11, e.Snapshot().YPosSteps)
}

func TestController_SetPitchRejectsNonPositive(t *testing.T) {
	c, _, _ := newTestController(t)
	assert.Error(t, c.SetPitch(0))
	assert.Error(t, c.SetPitch(-1))
	assert.NoError(t, c.SetPitch(0.5))
}

func TestController_SnapshotReportsTurnsPerLayerOnlyWithPitch(t *testing.T) {
	c, e, _ := newTestController(t)
	e.SetPitch(0)
	assert.Nil(t, c.Snapshot().TurnsPerLayer)

	require.NoError(t, c.SetPitch(2))
	e2 := c.Snapshot()
	require.NotNil(t, e2.TurnsPerLayer)
}
