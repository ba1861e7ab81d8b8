// Package encoder counts shaft ticks from an incremental encoder's A/B
// channels, independently of the motion loop, for the optional turn
// cross-check in spec.md §4.3.
package encoder

import (
	"fmt"
	"sync"
	"time"

	"github.com/STWuRCA-diy/winder/internal/hal"
)

// TicksPerRev is the fixed calibration constant from spec.md §4.3/§6.
const TicksPerRev = 18

// debounceWindow is the minimum spacing spec.md §4.3 requires between
// processed A-channel edges.
const debounceWindow = time.Millisecond

// Monitor tracks a signed tick count from encoder channel A, sampling B
// for direction on each falling edge of A. It guards its counter with a
// mutex dedicated to the encoder so the edge callback never contends with
// the motion loop's lock (spec.md §5).
type Monitor struct {
	mu       sync.Mutex
	gpio     hal.GPIOProvider
	ticks    int64
	prevA    bool
	lastEdge time.Time
}

// NewMonitor configures ENC_A/ENC_B as pulled-up inputs and registers the
// edge callback. The caller owns calling Close when done.
func NewMonitor(gpio hal.GPIOProvider) (*Monitor, error) {
	if err := gpio.SetMode(hal.PinEncA, hal.Input); err != nil {
		return nil, fmt.Errorf("encoder: configure ENC_A: %w", err)
	}
	if err := gpio.SetPull(hal.PinEncA, hal.PullUp); err != nil {
		return nil, fmt.Errorf("encoder: pull-up ENC_A: %w", err)
	}
	if err := gpio.SetMode(hal.PinEncB, hal.Input); err != nil {
		return nil, fmt.Errorf("encoder: configure ENC_B: %w", err)
	}
	if err := gpio.SetPull(hal.PinEncB, hal.PullUp); err != nil {
		return nil, fmt.Errorf("encoder: pull-up ENC_B: %w", err)
	}

	prevA, err := gpio.DigitalRead(hal.PinEncA)
	if err != nil {
		return nil, fmt.Errorf("encoder: read initial ENC_A: %w", err)
	}

	m := &Monitor{gpio: gpio, prevA: prevA}
	if err := gpio.WatchEdge(hal.PinEncA, hal.EdgeBoth, m.handleEdge); err != nil {
		return nil, fmt.Errorf("encoder: watch ENC_A: %w", err)
	}
	return m, nil
}

// handleEdge runs on the GPIO dispatcher (interrupt or poll goroutine,
// depending on backend). It must stay fast: no logging, no allocation,
// per spec.md §5.
func (m *Monitor) handleEdge(_ int, value bool) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastEdge.IsZero() && now.Sub(m.lastEdge) < debounceWindow {
		return
	}
	if value == m.prevA {
		return
	}
	m.prevA = value
	m.lastEdge = now

	if value {
		return // only the falling edge of A carries a tick
	}
	b, err := m.gpio.DigitalRead(hal.PinEncB)
	if err != nil {
		return
	}
	if b {
		m.ticks--
	} else {
		m.ticks++
	}
}

// Ticks returns the current signed tick count.
func (m *Monitor) Ticks() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks
}

// Turns returns the tick count expressed as real (fractional) turns.
func (m *Monitor) Turns() float64 {
	return float64(m.Ticks()) / TicksPerRev
}

// Reset zeroes the tick count, used on a RUN transition from IDLE.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks = 0
}

// Close cancels the edge watch.
func (m *Monitor) Close() error {
	return m.gpio.WatchEdge(hal.PinEncA, hal.EdgeNone, nil)
}
