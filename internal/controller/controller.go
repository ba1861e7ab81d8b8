// Package controller is the Controller (C) of spec.md §2: the single
// entry point for operator commands, owning the section-plan state
// machine layered on top of the Motion Loop's raw goal/job state.
package controller

import (
	"fmt"
	"sync"
	"time"

	"github.com/STWuRCA-diy/winder/internal/encoder"
	"github.com/STWuRCA-diy/winder/internal/logger"
	"github.com/STWuRCA-diy/winder/internal/motion"
	"github.com/google/uuid"
)

const (
	sectionAdvanceDelay = 120 * time.Millisecond
	autoNextCooldown    = 300 * time.Millisecond
)

// Controller wires a motion.Engine and an optional encoder.Monitor into
// the section-plan/auto-next operations of spec.md §4.5.
type Controller struct {
	mu sync.Mutex

	engine *motion.Engine
	enc    *encoder.Monitor

	sectionsMode bool
	sectionPlan  []int
	sectionPtr   int
	autoNext     bool
	runID        string
}

// New constructs a Controller and installs the goal-reached handler on
// engine. enc may be nil if the encoder cross-check is disabled.
func New(engine *motion.Engine, enc *encoder.Monitor) *Controller {
	c := &Controller{engine: engine, enc: enc}
	engine.SetGoalReachedHandler(c.onGoalReached)
	return c
}

// Start implements start(total, sections, auto_next) from spec.md §4.5.
func (c *Controller) Start(total, sections int, autoNext bool) error {
	if total <= 0 {
		return fmt.Errorf("controller: total must be > 0, got %d", total)
	}

	c.mu.Lock()
	c.autoNext = autoNext
	c.sectionsMode = false
	c.sectionPlan = nil
	c.sectionPtr = 0
	c.runID = uuid.NewString()

	if sections > 0 {
		plan := BuildSectionPlan(total, sections)
		c.sectionsMode = true
		c.sectionPlan = plan
		c.sectionPtr = 0
		c.mu.Unlock()

		c.engine.SetGoal(plan[0])
		c.engine.RunFromIdle()
		return nil
	}
	c.mu.Unlock()

	c.engine.SetGoal(total)
	c.engine.RunFromIdle()
	return nil
}

// Run implements run(): no-op unless IDLE.
func (c *Controller) Run() { c.engine.RunFromIdle() }

// Stop implements stop(): PAUSE with the grace-delay motor disable.
func (c *Controller) Stop() { c.engine.StopRequest() }

// Resume implements resume(), including the "resume under sections"
// special case of spec.md §4.5: if a section just completed and more
// remain, compute the next cumulative goal and run it instead of a
// plain resume.
func (c *Controller) Resume() {
	c.mu.Lock()
	sectionsMode := c.sectionsMode
	ptr := c.sectionPtr
	planLen := len(c.sectionPlan)
	c.mu.Unlock()

	if sectionsMode && ptr < planLen {
		// A section just completed when the armed goal has been reached;
		// a mid-section stop() leaves turns below the goal and resumes plainly.
		snap := c.engine.Snapshot()
		if snap.GoalTurns > 0 && snap.TurnsX >= snap.GoalTurns {
			c.startNextSection()
			return
		}
	}
	c.engine.Resume()
}

// YZero implements yzero().
func (c *Controller) YZero() { c.engine.YZero() }

// SetRPM implements set_rpm(); the engine clamps to [1, 5000].
func (c *Controller) SetRPM(v int) { c.engine.SetRPM(v) }

// SetPitch implements set_pitch(); v must be > 0.
func (c *Controller) SetPitch(v float64) error {
	if v <= 0 {
		return fmt.Errorf("controller: pitch_mm must be > 0, got %v", v)
	}
	c.engine.SetPitch(v)
	return nil
}

// SetBobbinWidth implements set_bwidth(); v must be > 0.
func (c *Controller) SetBobbinWidth(v float64) error {
	if v <= 0 {
		return fmt.Errorf("controller: bobbin width must be > 0, got %v", v)
	}
	c.engine.SetBobbinWidth(v)
	return nil
}

// SetXRev implements set_xrev(): v's sign becomes x_dir_sign, its
// magnitude (min 1) becomes x_steps_per_rev.
func (c *Controller) SetXRev(v int) { c.engine.SetXRev(v) }

// SetYCal implements set_ycal(); v must be > 0.
func (c *Controller) SetYCal(v float64) error {
	if v <= 0 {
		return fmt.Errorf("controller: y_steps_per_mm must be > 0, got %v", v)
	}
	c.engine.SetYCal(v)
	return nil
}

// onGoalReached is the Engine's GoalReachedFunc. It runs outside the
// engine's motion mutex (spec.md §9), so it is free to sleep and to
// call back into the engine.
func (c *Controller) onGoalReached(turnsX int) {
	c.mu.Lock()
	sectionsMode := c.sectionsMode
	planLen := len(c.sectionPlan)
	ptr := c.sectionPtr
	c.mu.Unlock()

	if !sectionsMode || ptr >= planLen {
		return
	}

	c.mu.Lock()
	c.sectionPtr++
	ptr = c.sectionPtr
	autoNext := c.autoNext
	c.mu.Unlock()

	if ptr >= planLen {
		logger.Info("section plan complete", "run_id", c.runID, "turns_x", turnsX)
		return
	}

	time.Sleep(sectionAdvanceDelay)
	c.engine.DisableMotor()
	c.engine.YZero()

	if autoNext {
		time.Sleep(autoNextCooldown)
		c.startNextSection()
	}
}

// startNextSection implements _start_next_section: goal becomes the
// current cumulative turn count plus the next section's size, and the
// engine resumes (not run()) so counters are preserved across sections.
func (c *Controller) startNextSection() {
	c.mu.Lock()
	if c.sectionPtr >= len(c.sectionPlan) {
		c.mu.Unlock()
		return
	}
	nextSize := c.sectionPlan[c.sectionPtr]
	c.mu.Unlock()

	snap := c.engine.Snapshot()
	goal := snap.TurnsX + nextSize

	c.engine.SetGoal(goal)
	c.engine.Resume()
}

// Snapshot implements snapshot(): composes the motion engine's raw
// state, the encoder cross-check, and section-plan bookkeeping into the
// status record of spec.md §6.
func (c *Controller) Snapshot() Status {
	snap := c.engine.Snapshot()

	c.mu.Lock()
	st := Status{
		Connected:      true,
		State:          snap.Job.String(),
		CurrentTurns:   snap.TurnsX,
		CurrentY:       ptrF(snap.YPositionMM()),
		CurrentRPM:     snap.Config.RPM,
		EffW:           snap.Config.BobbinWidthMM,
		Endstop:        boolToInt(c.engine.ReadYLimit()),
		SectionsMode:   c.sectionsMode,
		SectionPtr:     c.sectionPtr,
		SectionPlanLen: len(c.sectionPlan),
		RunID:          c.runID,
	}
	c.mu.Unlock()

	if snap.Config.PitchMM > 0 {
		st.TurnsPerLayer = ptrF(snap.Config.BobbinWidthMM / snap.Config.PitchMM)
	}
	if c.enc != nil {
		real := c.enc.Turns()
		st.CurrentTurnsReal = &real
	}
	return st
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
