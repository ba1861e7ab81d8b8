package hal

import (
	"fmt"
	"sync"
	"time"
)

// MockHAL is the no-op/recording HAL used on dev hosts and in tests. The
// rest of the engine runs unchanged against it (spec.md §4.2).
type MockHAL struct {
	gpio *MockGPIO
}

// NewMockHAL creates a MockHAL with all pins unconfigured.
func NewMockHAL() *MockHAL {
	return &MockHAL{gpio: NewMockGPIO()}
}

func (m *MockHAL) GPIO() GPIOProvider { return m.gpio }
func (m *MockHAL) Info() BoardInfo {
	return BoardInfo{Name: "Mock Board", IsMock: true, GPIOChip: ""}
}
func (m *MockHAL) Close() error { return m.gpio.Close() }

type mockWatch struct {
	edge EdgeMode
	cb   func(pin int, value bool)
}

type mockPin struct {
	mode  PinMode
	pull  PullMode
	value bool
}

// MockGPIO is a recording, in-memory GPIOProvider. Digital reads return
// the level last set via SetInputLevel or DigitalWrite (false for a pin
// that was configured but never driven; an error for a pin never touched);
// edge detection is simulated by SetInputLevel firing registered watchers.
type MockGPIO struct {
	mu          sync.RWMutex
	pins        map[int]*mockPin
	watchers    map[int]mockWatch
	pulseCounts map[int]int
}

// NewMockGPIO creates an empty MockGPIO.
func NewMockGPIO() *MockGPIO {
	return &MockGPIO{
		pins:        make(map[int]*mockPin),
		watchers:    make(map[int]mockWatch),
		pulseCounts: make(map[int]int),
	}
}

func (g *MockGPIO) pinOrNew(pin int) *mockPin {
	p, ok := g.pins[pin]
	if !ok {
		p = &mockPin{}
		g.pins[pin] = p
	}
	return p
}

func (g *MockGPIO) SetMode(pin int, mode PinMode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pinOrNew(pin).mode = mode
	return nil
}

func (g *MockGPIO) SetPull(pin int, pull PullMode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pinOrNew(pin).pull = pull
	return nil
}

func (g *MockGPIO) DigitalRead(pin int) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.pins[pin]
	if !ok {
		return false, fmt.Errorf("hal: pin %d not initialized", pin)
	}
	return p.value, nil
}

func (g *MockGPIO) DigitalWrite(pin int, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pinOrNew(pin).value = value
	return nil
}

func (g *MockGPIO) Pulse(pin int, width time.Duration) error {
	g.mu.Lock()
	g.pinOrNew(pin).value = true
	g.pulseCounts[pin]++
	g.mu.Unlock()

	if width > 0 {
		time.Sleep(width)
	}

	g.mu.Lock()
	g.pinOrNew(pin).value = false
	g.mu.Unlock()
	return nil
}

// PulseCount reports how many times Pulse has been called on pin, for
// test assertions.
func (g *MockGPIO) PulseCount(pin int) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pulseCounts[pin]
}

func (g *MockGPIO) WatchEdge(pin int, edge EdgeMode, callback func(pin int, value bool)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if edge == EdgeNone {
		delete(g.watchers, pin)
		return nil
	}
	g.watchers[pin] = mockWatch{edge: edge, cb: callback}
	return nil
}

// SetInputLevel sets the level a test or simulated peripheral drives onto
// an input pin, firing any registered edge watcher whose mode matches the
// transition. Like DigitalWrite it does not check the pin's mode; the
// caller here is standing in for external hardware.
func (g *MockGPIO) SetInputLevel(pin int, value bool) {
	g.mu.Lock()
	p := g.pinOrNew(pin)
	prev := p.value
	p.value = value
	w, watched := g.watchers[pin]
	g.mu.Unlock()

	if !watched || prev == value {
		return
	}
	rising := !prev && value
	falling := prev && !value
	if w.edge == EdgeBoth || (w.edge == EdgeRising && rising) || (w.edge == EdgeFalling && falling) {
		w.cb(pin, value)
	}
}

func (g *MockGPIO) ActivePins() map[int]PinMode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[int]PinMode, len(g.pins))
	for pin, p := range g.pins {
		out[pin] = p.mode
	}
	return out
}

func (g *MockGPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pins = make(map[int]*mockPin)
	g.watchers = make(map[int]mockWatch)
	return nil
}
