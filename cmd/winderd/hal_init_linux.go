//go:build linux
// +build linux

package main

import (
	"github.com/STWuRCA-diy/winder/internal/hal"
	"github.com/STWuRCA-diy/winder/internal/logger"
)

// initHAL picks the real Raspberry Pi GPIO backend when available,
// falling back to the mock backend otherwise (spec.md §9 "HAL
// selection"). It returns the full hal.HAL so the caller can Close it
// on shutdown and release GPIO (spec.md §5).
func initHAL(useMock bool) hal.HAL {
	if useMock {
		logger.Info("mock HAL requested via config")
		m := hal.NewMockHAL()
		hal.SetGlobalHAL(m)
		return m
	}

	rpiHAL, err := hal.NewRaspberryPiHAL()
	if err != nil {
		logger.Warn("failed to initialize Raspberry Pi HAL, falling back to mock", "error", err)
		m := hal.NewMockHAL()
		hal.SetGlobalHAL(m)
		return m
	}

	logger.Info("Raspberry Pi HAL initialized", "board", rpiHAL.Info().Name, "gpio_chip", rpiHAL.Info().GPIOChip)
	hal.SetGlobalHAL(rpiHAL)
	return rpiHAL
}
