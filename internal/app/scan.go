// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/etch_sketch/internal/config"
	"github.com/relabs-tech/etch_sketch/internal/regbus"
)

// Valid 7-bit addresses; the rest are reserved.
const (
	firstScanAddr = 0x08
	lastScanAddr  = 0x77
)

// knownDevices names the parts this board is built with.
var knownDevices = map[uint16]string{
	0x1D: "ADXL345 (alt)",
	0x3C: "SSD1306",
	0x3D: "SSD1306 (alt)",
	0x48: "ADS1115",
	0x49: "ADS1115 (alt)",
	0x53: "ADXL345",
}

// ScanBus returns every address in 0x08-0x77 that acknowledges a read.
func ScanBus(bus i2c.Bus) []uint16 {
	var found []uint16
	for addr := uint16(firstScanAddr); addr <= lastScanAddr; addr++ {
		if regbus.Probe(bus, addr) {
			found = append(found, addr)
		}
	}
	return found
}

// RunScan prints the devices found on the configured bus.
func RunScan(cfg *config.Config, out io.Writer) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	log.Printf("i2cscan: scanning %s", bus)
	found := ScanBus(bus)
	writeScan(out, found, cfg)
	return nil
}

func writeScan(out io.Writer, found []uint16, cfg *config.Config) {
	if len(found) == 0 {
		fmt.Fprintln(out, "no devices found")
	}
	seen := make(map[uint16]bool, len(found))
	for _, addr := range found {
		seen[addr] = true
		name := knownDevices[addr]
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(out, "0x%02X  %s\n", addr, name)
	}
	for _, want := range []struct {
		key  string
		addr uint16
	}{
		{"ACCEL_I2C_ADDR", cfg.AccelI2CAddr},
		{"ADC_I2C_ADDR", cfg.ADCI2CAddr},
	} {
		if !seen[want.addr] {
			fmt.Fprintf(out, "missing: %s 0x%02X\n", want.key, want.addr)
		}
	}
}
