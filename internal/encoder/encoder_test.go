package encoder

import (
	"testing"
	"time"

	"github.com/STWuRCA-diy/winder/internal/hal"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) (*Monitor, *hal.MockGPIO) {
	t.Helper()
	gpio := hal.NewMockGPIO()
	// Pulled-up idle state: both channels read HIGH until driven low.
	gpio.SetInputLevel(hal.PinEncA, true)
	gpio.SetInputLevel(hal.PinEncB, true)
	m, err := NewMonitor(gpio)
	require.NoError(t, err)
	return m, gpio
}

func tick(gpio *hal.MockGPIO, bLow bool) {
	gpio.SetInputLevel(hal.PinEncB, !bLow)
	gpio.SetInputLevel(hal.PinEncA, false) // falling edge: counted
	time.Sleep(2 * time.Millisecond)       // clear the debounce window
	gpio.SetInputLevel(hal.PinEncA, true)  // rising edge: ignored
	time.Sleep(2 * time.Millisecond)
}

func TestMonitor_CountsEighteenTicksPerRev(t *testing.T) {
	m, gpio := newTestMonitor(t)

	for i := 0; i < TicksPerRev; i++ {
		tick(gpio, true) // B LOW -> +1 per spec.md §4.3
	}

	require.Equal(t, int64(TicksPerRev), m.Ticks())
	require.InDelta(t, 1.0, m.Turns(), 0.001)
}

func TestMonitor_DirectionSignFollowsB(t *testing.T) {
	m, gpio := newTestMonitor(t)

	tick(gpio, true) // B LOW -> +1
	require.Equal(t, int64(1), m.Ticks())

	tick(gpio, false) // B HIGH -> -1
	require.Equal(t, int64(0), m.Ticks())
}

func TestMonitor_DebounceDropsFastEdges(t *testing.T) {
	m, gpio := newTestMonitor(t)

	gpio.SetInputLevel(hal.PinEncB, true) // HIGH -> would be -1
	gpio.SetInputLevel(hal.PinEncA, false)
	// Immediately bounce back and forth, well inside the 1ms window.
	gpio.SetInputLevel(hal.PinEncA, true)
	gpio.SetInputLevel(hal.PinEncA, false)

	require.Equal(t, int64(-1), m.Ticks(), "only the first edge in the debounce window should count")
}

func TestMonitor_ResetZeroesCount(t *testing.T) {
	m, gpio := newTestMonitor(t)
	tick(gpio, true)
	require.NotZero(t, m.Ticks())
	m.Reset()
	require.Zero(t, m.Ticks())
}
