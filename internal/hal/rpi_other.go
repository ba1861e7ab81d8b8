//go:build !linux

package hal

import "fmt"

// RaspberryPiHAL is unavailable off Linux; NewRaspberryPiHAL always
// fails so callers fall back to MockHAL, matching the teacher's
// gpio_gpiocdev_stub.go split for non-Linux dev hosts.
type RaspberryPiHAL struct{}

func NewRaspberryPiHAL() (*RaspberryPiHAL, error) {
	return nil, fmt.Errorf("hal: Raspberry Pi GPIO only supported on linux")
}

func (h *RaspberryPiHAL) GPIO() GPIOProvider { return nil }
func (h *RaspberryPiHAL) Info() BoardInfo    { return BoardInfo{} }
func (h *RaspberryPiHAL) Close() error       { return nil }
