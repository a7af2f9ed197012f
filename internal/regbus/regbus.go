// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package regbus issues register transactions against an addressed peripheral.
package regbus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// Bus is a register-addressed peripheral. Implementations own their handle.
type Bus interface {
	ReadRegister(reg byte) (byte, error)
	ReadRegisters(reg byte, buf []byte) error
	WriteRegister(reg, value byte) error
}

// BusIOError reports a failed register transaction.
type BusIOError struct {
	Op   string // "read" or "write"
	Addr uint16
	Reg  byte
	Err  error
}

func (e *BusIOError) Error() string {
	return fmt.Sprintf("regbus: %s dev 0x%02X reg 0x%02X: %v", e.Op, e.Addr, e.Reg, e.Err)
}

func (e *BusIOError) Unwrap() error {
	return e.Err
}

// I2C implements Bus on top of a periph I²C device handle.
type I2C struct {
	dev i2c.Dev
}

// NewI2C binds a 7-bit device address on bus b.
func NewI2C(b i2c.Bus, addr uint16) *I2C {
	return &I2C{dev: i2c.Dev{Bus: b, Addr: addr}}
}

// Addr returns the device address.
func (d *I2C) Addr() uint16 {
	return d.dev.Addr
}

// ReadRegister reads a single byte from reg.
func (d *I2C) ReadRegister(reg byte) (byte, error) {
	var r [1]byte
	if err := d.dev.Tx([]byte{reg}, r[:]); err != nil {
		return 0, &BusIOError{Op: "read", Addr: d.dev.Addr, Reg: reg, Err: err}
	}
	return r[0], nil
}

// ReadRegisters burst-reads len(buf) consecutive bytes starting at reg.
func (d *I2C) ReadRegisters(reg byte, buf []byte) error {
	if err := d.dev.Tx([]byte{reg}, buf); err != nil {
		return &BusIOError{Op: "read", Addr: d.dev.Addr, Reg: reg, Err: err}
	}
	return nil
}

// WriteRegister writes a single byte to reg.
func (d *I2C) WriteRegister(reg, value byte) error {
	if err := d.dev.Tx([]byte{reg, value}, nil); err != nil {
		return &BusIOError{Op: "write", Addr: d.dev.Addr, Reg: reg, Err: err}
	}
	return nil
}

func (d *I2C) String() string {
	return fmt.Sprintf("regbus.I2C{%s 0x%02X}", d.dev.Bus, d.dev.Addr)
}

// Probe reports whether a device acknowledges a one-byte read at addr.
func Probe(b i2c.Bus, addr uint16) bool {
	var r [1]byte
	return b.Tx(addr, nil, r[:]) == nil
}
