//go:build linux

package hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/host/v3"
)

// pollInterval is the edge-detection poll period for WatchEdge. At 200 µs
// it samples comfortably above 4x the fastest tick rate the encoder
// monitor expects (spec.md §9 "Encoder interrupts vs. polling").
const pollInterval = 200 * time.Microsecond

// RaspberryPiHAL drives real GPIO hardware via go-rpio, after bringing
// up the platform through periph.io/x/host so pin-capable drivers on the
// board are registered before rpio.Open touches /dev/gpiomem.
type RaspberryPiHAL struct {
	mu       sync.Mutex
	pins     map[int]rpio.Pin
	modes    map[int]PinMode
	watchers map[int]context.CancelFunc
}

// NewRaspberryPiHAL initializes the periph host, maps /dev/gpiomem via
// rpio.Open and returns a ready HAL. Callers should Close it on shutdown.
func NewRaspberryPiHAL() (*RaspberryPiHAL, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hal: periph host init: %w", err)
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("hal: rpio open: %w", err)
	}
	return &RaspberryPiHAL{
		pins:     make(map[int]rpio.Pin),
		modes:    make(map[int]PinMode),
		watchers: make(map[int]context.CancelFunc),
	}, nil
}

func (h *RaspberryPiHAL) GPIO() GPIOProvider { return h }
func (h *RaspberryPiHAL) Info() BoardInfo {
	return BoardInfo{Name: "Raspberry Pi", IsMock: false, GPIOChip: "gpiomem"}
}

func (h *RaspberryPiHAL) Close() error {
	h.mu.Lock()
	for _, cancel := range h.watchers {
		cancel()
	}
	h.watchers = make(map[int]context.CancelFunc)
	h.mu.Unlock()
	return rpio.Close()
}

func (h *RaspberryPiHAL) SetMode(pin int, mode PinMode) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("hal: unsupported pin mode %v", mode)
	}
	h.pins[pin] = p
	h.modes[pin] = mode
	return nil
}

func (h *RaspberryPiHAL) SetPull(pin int, pull PullMode) error {
	h.mu.Lock()
	p, ok := h.pins[pin]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("hal: pin %d not initialized", pin)
	}
	switch pull {
	case PullUp:
		p.PullUp()
	case PullDown:
		p.PullDown()
	default:
		p.PullOff()
	}
	return nil
}

func (h *RaspberryPiHAL) DigitalRead(pin int) (bool, error) {
	h.mu.Lock()
	p, ok := h.pins[pin]
	h.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("hal: pin %d not initialized", pin)
	}
	return p.Read() == rpio.High, nil
}

func (h *RaspberryPiHAL) DigitalWrite(pin int, value bool) error {
	h.mu.Lock()
	p, ok := h.pins[pin]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("hal: pin %d not initialized", pin)
	}
	if value {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (h *RaspberryPiHAL) Pulse(pin int, width time.Duration) error {
	if err := h.DigitalWrite(pin, true); err != nil {
		return err
	}
	time.Sleep(width)
	return h.DigitalWrite(pin, false)
}

// WatchEdge polls the pin at pollInterval and invokes callback on the
// requested transition(s). go-rpio v4 exposes no character-device event
// stream, so this is the polling fallback spec.md §9 allows.
func (h *RaspberryPiHAL) WatchEdge(pin int, edge EdgeMode, callback func(pin int, value bool)) error {
	h.mu.Lock()
	if cancel, ok := h.watchers[pin]; ok {
		cancel()
		delete(h.watchers, pin)
	}
	if edge == EdgeNone {
		h.mu.Unlock()
		return nil
	}
	p, ok := h.pins[pin]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("hal: pin %d not initialized", pin)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.watchers[pin] = cancel
	h.mu.Unlock()

	go func() {
		last := p.Read() == rpio.High
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cur := p.Read() == rpio.High
				if cur == last {
					continue
				}
				rising := !last && cur
				falling := last && !cur
				last = cur
				if edge == EdgeBoth || (edge == EdgeRising && rising) || (edge == EdgeFalling && falling) {
					callback(pin, cur)
				}
			}
		}
	}()
	return nil
}

func (h *RaspberryPiHAL) ActivePins() map[int]PinMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[int]PinMode, len(h.modes))
	for pin, mode := range h.modes {
		out[pin] = mode
	}
	return out
}
