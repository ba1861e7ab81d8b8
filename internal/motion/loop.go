// Package motion implements the single real-time worker that paces X
// step pulses, derives Y motion from the fractional accumulator, bounces
// Y at the bobbin edges, and tracks turns/goal (spec.md §4.4).
package motion

import (
	"context"
	"sync"
	"time"

	"github.com/STWuRCA-diy/winder/internal/hal"
	"github.com/STWuRCA-diy/winder/internal/kinematics"
	"github.com/STWuRCA-diy/winder/internal/logger"
)

const (
	runGateSleep   = 50 * time.Millisecond
	paceSleepCap   = time.Millisecond
	stopGraceDelay = 120 * time.Millisecond
	hwErrLogPeriod = time.Minute
)

// GoalReachedFunc is invoked once per goal crossing, outside the motion
// mutex (spec.md §9 "Goal-reached callback").
type GoalReachedFunc func(turnsX int)

// Engine is the Motion Loop (M): it owns the mutex-guarded configuration
// and motion state from spec.md §3 and the single worker goroutine that
// drives GPIO from it.
type Engine struct {
	mu sync.Mutex

	cfg     Config
	derived kinematics.Derived

	job        Job
	turnsX     int
	xStepsMod  int
	yPosSteps  int
	yAcc       float64
	yDirSign   int
	goalTurns  int
	yHomeArmed bool
	yHomeDone  bool

	gpio          hal.GPIOProvider
	onGoalReached GoalReachedFunc
	resetEncoder  func()

	hwErrMu   sync.Mutex
	lastHWLog map[int]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Engine against the given GPIO provider. resetEncoder,
// if non-nil, is called on a RUN transition from IDLE (spec.md §4.5 "run()").
func New(gpio hal.GPIOProvider, cfg Config, resetEncoder func()) (*Engine, error) {
	e := &Engine{
		cfg:          cfg,
		job:          JobIdle,
		yDirSign:     1,
		goalTurns:    -1,
		yHomeArmed:   true,
		gpio:         gpio,
		resetEncoder: resetEncoder,
		lastHWLog:    make(map[int]time.Time),
	}
	e.derived = kinematics.Compute(kinematics.Config{
		XStepsPerRev: cfg.XStepsPerRev,
		YStepsPerMM:  cfg.YStepsPerMM,
		PitchMM:      cfg.PitchMM,
		RPM:          cfg.RPM,
	})

	for _, pin := range hal.OutputPins() {
		if err := gpio.SetMode(pin, hal.Output); err != nil {
			return nil, err
		}
		if err := gpio.DigitalWrite(pin, false); err != nil {
			return nil, err
		}
	}
	if err := gpio.DigitalWrite(hal.PinMotorEnable, true); err != nil {
		return nil, err
	}
	if err := gpio.SetMode(hal.PinYLimit, hal.Input); err != nil {
		return nil, err
	}
	if err := gpio.SetPull(hal.PinYLimit, hal.PullUp); err != nil {
		return nil, err
	}

	return e, nil
}

// SetGoalReachedHandler installs the callback the Controller uses to react
// to goal completion (section advance, auto-next, final pause).
func (e *Engine) SetGoalReachedHandler(fn GoalReachedFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onGoalReached = fn
}

// Start launches the worker goroutine. Calling Start twice is a no-op
// after the first call returns the engine already running.
func (e *Engine) Start() {
	if e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx)
	}()
}

// Stop cancels the worker and waits up to timeout for it to exit,
// releasing GPIO motor-enable either way (spec.md §5 "Cancellation").
func (e *Engine) Stop(timeout time.Duration) {
	if e.cancel == nil {
		return
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
	e.disableMotor()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// run is the per-iteration loop contract of spec.md §4.4.
func (e *Engine) run(ctx context.Context) {
	nextXTime := time.Now()
	for {
		if ctx.Err() != nil {
			return
		}

		e.yHomeScan()

		e.mu.Lock()
		job := e.job
		e.mu.Unlock()

		if job != JobRun {
			nextXTime = time.Now()
			sleepCtx(ctx, runGateSleep)
			continue
		}

		now := time.Now()
		if now.Before(nextXTime) {
			remaining := nextXTime.Sub(now)
			if remaining > paceSleepCap {
				remaining = paceSleepCap
			}
			sleepCtx(ctx, remaining)
			continue
		}

		e.mu.Lock()
		interval := e.derived.XInterval
		e.mu.Unlock()
		nextXTime = nextXTime.Add(interval)

		e.emitXStep()

		goalHit, turnsAtGoal := e.accountX()
		if goalHit {
			e.disableMotor()
			e.mu.Lock()
			cb := e.onGoalReached
			e.mu.Unlock()
			if cb != nil {
				cb(turnsAtGoal)
			}
			continue
		}

		e.emitYSteps()
	}
}

func (e *Engine) yHomeScan() {
	v, err := e.gpio.DigitalRead(hal.PinYLimit)
	if err != nil {
		e.logHWError(hal.PinYLimit, err)
		return
	}
	engaged := !v // LOW when engaged (active-low, spec.md §4.2)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.yHomeArmed && !e.yHomeDone && engaged {
		e.yPosSteps = 0
		e.yHomeDone = true
		e.yHomeArmed = false
	} else if !engaged {
		e.yHomeDone = false
	}
}

func (e *Engine) emitXStep() {
	e.mu.Lock()
	dirSign := e.cfg.XDirSign
	e.mu.Unlock()

	if err := e.gpio.DigitalWrite(hal.PinXDir, dirSign > 0); err != nil {
		e.logHWError(hal.PinXDir, err)
	}
	if err := e.gpio.Pulse(hal.PinXStep, hal.StepPulseWidth); err != nil {
		e.logHWError(hal.PinXStep, err)
	}
}

// accountX increments x_steps_mod/turns_x and reports whether the goal
// was just crossed, per spec.md §4.4 step 5.
func (e *Engine) accountX() (goalHit bool, turnsX int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.xStepsMod++
	if e.cfg.XStepsPerRev > 0 && e.xStepsMod >= e.cfg.XStepsPerRev {
		e.xStepsMod -= e.cfg.XStepsPerRev
		e.turnsX++
		if e.goalTurns > 0 && e.turnsX >= e.goalTurns {
			e.job = JobPause
			return true, e.turnsX
		}
	}
	e.yAcc += e.derived.YStepPerXStep
	return false, e.turnsX
}

func (e *Engine) emitYSteps() {
	for {
		dir, stepped := e.takeYStep()
		if !stepped {
			return
		}
		if err := e.gpio.DigitalWrite(hal.PinYDir, dir > 0); err != nil {
			e.logHWError(hal.PinYDir, err)
		}
		if err := e.gpio.Pulse(hal.PinYStep, hal.StepPulseWidth); err != nil {
			e.logHWError(hal.PinYStep, err)
		}
	}
}

// takeYStep consumes one pending fractional step, applying the layer
// bounce reversal before the step that would cross an edge (spec.md §4.4
// "Edge policy").
func (e *Engine) takeYStep() (dirSign int, stepped bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.yAcc < 1.0 {
		return 0, false
	}
	e.yAcc -= 1.0

	yMM := float64(e.yPosSteps) / e.cfg.YStepsPerMM
	if e.yDirSign > 0 && yMM >= e.cfg.BobbinWidthMM {
		e.yDirSign = -1
	} else if e.yDirSign < 0 && yMM <= 0.0 {
		e.yDirSign = 1
	}
	e.yPosSteps += e.yDirSign
	return e.yDirSign, true
}

func (e *Engine) disableMotor() {
	if err := e.gpio.DigitalWrite(hal.PinMotorEnable, true); err != nil {
		e.logHWError(hal.PinMotorEnable, err)
	}
}

func (e *Engine) enableMotor() {
	if err := e.gpio.DigitalWrite(hal.PinMotorEnable, false); err != nil {
		e.logHWError(hal.PinMotorEnable, err)
	}
}

func (e *Engine) logHWError(pin int, err error) {
	e.hwErrMu.Lock()
	last, logged := e.lastHWLog[pin]
	if logged && time.Since(last) < hwErrLogPeriod {
		e.hwErrMu.Unlock()
		return
	}
	e.lastHWLog[pin] = time.Now()
	e.hwErrMu.Unlock()

	logger.Warn("gpio pulse dropped", "pin", pin, "error", err)
}

// --- Operations (spec.md §4.5) ---

// RunFromIdle implements run(): resets turns/x_steps_mod and re-derives
// kinematics only on an IDLE->RUN transition; a no-op otherwise, per the
// state machine in spec.md §4.6 (run() is not a documented PAUSE->RUN
// transition; use Resume for that).
func (e *Engine) RunFromIdle() {
	e.mu.Lock()
	if e.job != JobIdle {
		e.mu.Unlock()
		return
	}
	e.turnsX = 0
	e.xStepsMod = 0
	e.derived = kinematics.Compute(kinematics.Config{
		XStepsPerRev: e.cfg.XStepsPerRev,
		YStepsPerMM:  e.cfg.YStepsPerMM,
		PitchMM:      e.cfg.PitchMM,
		RPM:          e.cfg.RPM,
	})
	e.job = JobRun
	e.mu.Unlock()

	if e.resetEncoder != nil {
		e.resetEncoder()
	}
	e.enableMotor()
}

// StopRequest implements stop(): PAUSE immediately, motors disabled after the
// grace delay so the in-flight pulse settles.
func (e *Engine) StopRequest() {
	e.mu.Lock()
	e.job = JobPause
	e.mu.Unlock()
	go func() {
		time.Sleep(stopGraceDelay)
		e.disableMotor()
	}()
}

// Resume implements resume(): PAUSE or IDLE -> RUN, counters untouched.
func (e *Engine) Resume() {
	e.mu.Lock()
	if e.job == JobRun {
		e.mu.Unlock()
		return
	}
	e.job = JobRun
	e.mu.Unlock()
	e.enableMotor()
}

// YZero implements yzero(): resets Y position without touching job state.
func (e *Engine) YZero() {
	e.mu.Lock()
	e.yPosSteps = 0
	e.mu.Unlock()
}

// SetGoal implements goal(n).
func (e *Engine) SetGoal(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > 0 {
		e.goalTurns = n
	} else {
		e.goalTurns = -1
	}
}

// DisableMotor is exported so the Controller can force motors off
// between sections without touching job state.
func (e *Engine) DisableMotor() { e.disableMotor() }

// SetRPM clamps to [1, 5000] and recomputes kinematics.
func (e *Engine) SetRPM(v int) {
	if v < 1 {
		v = 1
	} else if v > 5000 {
		v = 5000
	}
	e.mu.Lock()
	e.cfg.RPM = v
	e.recompute()
	e.mu.Unlock()
}

// SetPitch sets pitch_mm; the caller validates v > 0.
func (e *Engine) SetPitch(v float64) {
	e.mu.Lock()
	e.cfg.PitchMM = v
	e.recompute()
	e.mu.Unlock()
}

// SetBobbinWidth sets bobbin_width_mm; the caller validates v > 0.
func (e *Engine) SetBobbinWidth(v float64) {
	e.mu.Lock()
	e.cfg.BobbinWidthMM = v
	e.mu.Unlock()
}

// SetXRev splits a signed step count into x_dir_sign and a positive
// x_steps_per_rev magnitude (min 1), per spec.md §9's design note: never
// let a signed count reach the pulse path.
func (e *Engine) SetXRev(v int) {
	sign := 1
	if v < 0 {
		sign = -1
		v = -v
	}
	if v < 1 {
		v = 1
	}
	e.mu.Lock()
	e.cfg.XDirSign = sign
	e.cfg.XStepsPerRev = v
	e.recompute()
	e.mu.Unlock()
}

// SetYCal sets y_steps_per_mm; the caller validates v > 0.
func (e *Engine) SetYCal(v float64) {
	e.mu.Lock()
	e.cfg.YStepsPerMM = v
	e.recompute()
	e.mu.Unlock()
}

// recompute must be called with mu held.
func (e *Engine) recompute() {
	e.derived = kinematics.Compute(kinematics.Config{
		XStepsPerRev: e.cfg.XStepsPerRev,
		YStepsPerMM:  e.cfg.YStepsPerMM,
		PitchMM:      e.cfg.PitchMM,
		RPM:          e.cfg.RPM,
	})
}

// Snapshot returns a copy of the raw motion state for status reporting.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Job:           e.job,
		TurnsX:        e.turnsX,
		YPosSteps:     e.yPosSteps,
		GoalTurns:     e.goalTurns,
		Config:        e.cfg,
		YStepPerXStep: e.derived.YStepPerXStep,
	}
}

// ReadYLimit reports whether the Y limit switch is currently engaged.
func (e *Engine) ReadYLimit() bool {
	v, err := e.gpio.DigitalRead(hal.PinYLimit)
	if err != nil {
		e.logHWError(hal.PinYLimit, err)
		return false
	}
	return !v // LOW when engaged (active-low, spec.md §4.2)
}
