// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package accel drives an ADXL345 3-axis accelerometer over a register bus.
package accel

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/relabs-tech/etch_sketch/internal/regbus"
)

const (
	// DefaultAddr is the I²C address with ALT ADDRESS pulled low.
	DefaultAddr = 0x53

	RegDeviceID   = 0x00
	RegOffsetX    = 0x1E
	RegPowerCtl   = 0x2D
	RegDataFormat = 0x31
	RegDataX0     = 0x32

	// ExpectedDeviceID is the fixed DEVID value of an ADXL345.
	ExpectedDeviceID = 0xE5

	powerCtlMeasure = 1 << 3
	// FULL_RES | range ±16g
	dataFormatFullRes16G = 0x0B

	// GPerLSB is the full-resolution sensitivity.
	GPerLSB = 1.0 / 256.0
	// StandardGravity converts g to m/s².
	StandardGravity = 9.80665
	// OffsetGPerLSB is the OFSX/OFSY/OFSZ scale.
	OffsetGPerLSB = 0.0156
)

// Vector is an acceleration sample in m/s².
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector) String() string {
	return fmt.Sprintf("X:%.3f Y:%.3f Z:%.3f", v.X, v.Y, v.Z)
}

// DeviceNotFoundError is returned when DEVID does not identify an ADXL345.
type DeviceNotFoundError struct {
	Got  byte
	Want byte
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("accel: device not found: DEVID=0x%02X, want 0x%02X", e.Got, e.Want)
}

// ADXL345 is the accelerometer handle. It owns its bus client.
type ADXL345 struct {
	bus regbus.Bus
}

// New wraps bus. No transaction is issued until VerifyIdentity or Init.
func New(bus regbus.Bus) *ADXL345 {
	return &ADXL345{bus: bus}
}

// Init verifies the device, enables measurement and selects full resolution.
func (d *ADXL345) Init() error {
	if err := d.VerifyIdentity(); err != nil {
		return err
	}
	if err := d.EnableMeasurement(); err != nil {
		return fmt.Errorf("accel: enable measurement: %w", err)
	}
	if err := d.SetFullResolution(); err != nil {
		return fmt.Errorf("accel: set data format: %w", err)
	}
	return nil
}

// VerifyIdentity reads DEVID and fails with *DeviceNotFoundError on mismatch.
func (d *ADXL345) VerifyIdentity() error {
	id, err := d.bus.ReadRegister(RegDeviceID)
	if err != nil {
		return fmt.Errorf("accel: read device id: %w", err)
	}
	if id != ExpectedDeviceID {
		return &DeviceNotFoundError{Got: id, Want: ExpectedDeviceID}
	}
	return nil
}

// EnableMeasurement sets the Measure bit in POWER_CTL, keeping the other bits.
func (d *ADXL345) EnableMeasurement() error {
	v, err := d.bus.ReadRegister(RegPowerCtl)
	if err != nil {
		return err
	}
	return d.bus.WriteRegister(RegPowerCtl, v|powerCtlMeasure)
}

// SetFullResolution selects FULL_RES at ±16g so the scale stays 1/256 g per LSB.
func (d *ADXL345) SetFullResolution() error {
	return d.bus.WriteRegister(RegDataFormat, dataFormatFullRes16G)
}

// ReadAcceleration burst-reads DATAX0..DATAZ1 and returns the scaled vector.
func (d *ADXL345) ReadAcceleration() (Vector, error) {
	var raw [6]byte
	if err := d.bus.ReadRegisters(RegDataX0, raw[:]); err != nil {
		return Vector{}, err
	}
	return Decode(raw), nil
}

// SetOffsets writes OFSX, OFSY and OFSZ. The offsets are added to every
// sample by the device itself.
func (d *ADXL345) SetOffsets(x, y, z int8) error {
	for i, v := range []int8{x, y, z} {
		if err := d.bus.WriteRegister(RegOffsetX+byte(i), byte(v)); err != nil {
			return fmt.Errorf("accel: write offset: %w", err)
		}
	}
	return nil
}

// OffsetsFor returns the offset register values that bring a mean reading
// taken lying flat (Z up) to (0, 0, 1g).
func OffsetsFor(mean Vector) (x, y, z int8) {
	toLSB := func(ms2 float64) int8 {
		v := math.Round(-ms2 / StandardGravity / OffsetGPerLSB)
		return int8(max(math.MinInt8, min(v, math.MaxInt8)))
	}
	return toLSB(mean.X), toLSB(mean.Y), toLSB(mean.Z - StandardGravity)
}

// ReadRegister exposes raw register access for diagnostics.
func (d *ADXL345) ReadRegister(reg byte) (byte, error) {
	return d.bus.ReadRegister(reg)
}

// WriteRegister exposes raw register access for diagnostics.
func (d *ADXL345) WriteRegister(reg, value byte) error {
	return d.bus.WriteRegister(reg, value)
}

// Decode converts the 6-byte little-endian X,Y,Z block to m/s².
func Decode(raw [6]byte) Vector {
	x := int16(binary.LittleEndian.Uint16(raw[0:2]))
	y := int16(binary.LittleEndian.Uint16(raw[2:4]))
	z := int16(binary.LittleEndian.Uint16(raw[4:6]))
	return Vector{
		X: countsToMS2(x),
		Y: countsToMS2(y),
		Z: countsToMS2(z),
	}
}

func countsToMS2(c int16) float64 {
	return float64(c) * GPerLSB * StandardGravity
}

func (d *ADXL345) String() string {
	return fmt.Sprintf("ADXL345{%v}", d.bus)
}
