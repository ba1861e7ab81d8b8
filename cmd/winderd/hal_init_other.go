//go:build !linux
// +build !linux

package main

import (
	"github.com/STWuRCA-diy/winder/internal/hal"
	"github.com/STWuRCA-diy/winder/internal/logger"
)

// initHAL always uses the mock backend on non-Linux dev hosts; useMock
// is accepted for signature parity with the Linux build but has no
// effect since there is no real backend to choose here. It returns the
// full hal.HAL so the caller can Close it on shutdown.
func initHAL(useMock bool) hal.HAL {
	logger.Info("non-Linux platform detected, using mock HAL for GPIO")
	m := hal.NewMockHAL()
	hal.SetGlobalHAL(m)
	return m
}
