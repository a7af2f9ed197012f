// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package accel

import "fmt"

// BitField describes a field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is register metadata for the diagnostic console.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// Registers returns metadata for the ADXL345 register map.
func Registers() []RegisterInfo {
	return []RegisterInfo{
		{Address: "0x00", Name: "DEVID", Description: "Device ID", Access: "R", Default: "0xE5"},

		// Tap / activity configuration
		{Address: "0x1D", Name: "THRESH_TAP", Description: "Tap threshold (62.5 mg/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x1E", Name: "OFSX", Description: "X-axis offset (15.6 mg/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x1F", Name: "OFSY", Description: "Y-axis offset (15.6 mg/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x20", Name: "OFSZ", Description: "Z-axis offset (15.6 mg/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x21", Name: "DUR", Description: "Tap duration (625 µs/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x22", Name: "LATENT", Description: "Tap latency (1.25 ms/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x23", Name: "WINDOW", Description: "Tap window (1.25 ms/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x24", Name: "THRESH_ACT", Description: "Activity threshold (62.5 mg/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x25", Name: "THRESH_INACT", Description: "Inactivity threshold (62.5 mg/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x26", Name: "TIME_INACT", Description: "Inactivity time (1 s/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x27", Name: "ACT_INACT_CTL", Description: "Axis enable for activity/inactivity", Access: "RW", Default: "0x00"},
		{Address: "0x28", Name: "THRESH_FF", Description: "Free-fall threshold (62.5 mg/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x29", Name: "TIME_FF", Description: "Free-fall time (5 ms/LSB)", Access: "RW", Default: "0x00"},
		{Address: "0x2A", Name: "TAP_AXES", Description: "Axis control for tap detection", Access: "RW", Default: "0x00"},
		{Address: "0x2B", Name: "ACT_TAP_STATUS", Description: "Source of activity/tap", Access: "R", Default: "0x00"},

		// Control
		{Address: "0x2C", Name: "BW_RATE", Description: "Data rate and power mode", Access: "RW", Default: "0x0A",
			BitFields: []BitField{
				{Bits: "4", Name: "LOW_POWER", Description: "Reduced power operation", Values: "0=Normal, 1=Low power"},
				{Bits: "3:0", Name: "Rate", Description: "Output data rate", Values: "0xA=100Hz, 0xB=200Hz, 0xC=400Hz, 0xF=3200Hz"},
			}},
		{Address: "0x2D", Name: "POWER_CTL", Description: "Power-saving features control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5", Name: "Link", Description: "Link activity and inactivity", Values: "0=Concurrent, 1=Linked"},
				{Bits: "4", Name: "AUTO_SLEEP", Description: "Auto sleep on inactivity", Values: "0=Disabled, 1=Enabled"},
				{Bits: "3", Name: "Measure", Description: "Measurement mode", Values: "0=Standby, 1=Measure"},
				{Bits: "2", Name: "Sleep", Description: "Sleep mode", Values: "0=Normal, 1=Sleep"},
				{Bits: "1:0", Name: "Wakeup", Description: "Reading frequency in sleep", Values: "0=8Hz, 1=4Hz, 2=2Hz, 3=1Hz"},
			}},
		{Address: "0x2E", Name: "INT_ENABLE", Description: "Interrupt enable control", Access: "RW", Default: "0x00"},
		{Address: "0x2F", Name: "INT_MAP", Description: "Interrupt mapping control", Access: "RW", Default: "0x00"},
		{Address: "0x30", Name: "INT_SOURCE", Description: "Source of interrupts", Access: "R", Default: "0x02"},
		{Address: "0x31", Name: "DATA_FORMAT", Description: "Data format control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "SELF_TEST", Description: "Apply self-test force", Values: "0=Disabled, 1=Enabled"},
				{Bits: "6", Name: "SPI", Description: "SPI wire mode", Values: "0=4-wire, 1=3-wire"},
				{Bits: "5", Name: "INT_INVERT", Description: "Interrupt polarity", Values: "0=Active high, 1=Active low"},
				{Bits: "3", Name: "FULL_RES", Description: "Full resolution (4 mg/LSB)", Values: "0=10-bit, 1=Full resolution"},
				{Bits: "2", Name: "Justify", Description: "Data justification", Values: "0=Right, 1=Left (MSB)"},
				{Bits: "1:0", Name: "Range", Description: "g range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
			}},

		// Data (read-only)
		{Address: "0x32", Name: "DATAX0", Description: "X-Axis Data 0 (LSB)", Access: "R"},
		{Address: "0x33", Name: "DATAX1", Description: "X-Axis Data 1 (MSB)", Access: "R"},
		{Address: "0x34", Name: "DATAY0", Description: "Y-Axis Data 0 (LSB)", Access: "R"},
		{Address: "0x35", Name: "DATAY1", Description: "Y-Axis Data 1 (MSB)", Access: "R"},
		{Address: "0x36", Name: "DATAZ0", Description: "Z-Axis Data 0 (LSB)", Access: "R"},
		{Address: "0x37", Name: "DATAZ1", Description: "Z-Axis Data 1 (MSB)", Access: "R"},

		// FIFO
		{Address: "0x38", Name: "FIFO_CTL", Description: "FIFO control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "FIFO_MODE", Description: "FIFO mode", Values: "0=Bypass, 1=FIFO, 2=Stream, 3=Trigger"},
				{Bits: "5", Name: "Trigger", Description: "Trigger event link", Values: "0=INT1, 1=INT2"},
				{Bits: "4:0", Name: "Samples", Description: "Watermark sample count", Values: "0-31"},
			}},
		{Address: "0x39", Name: "FIFO_STATUS", Description: "FIFO status", Access: "R", Default: "0x00"},
	}
}

// RegisterAddresses returns every register address in the map, in order.
func RegisterAddresses() []byte {
	regs := Registers()
	addrs := make([]byte, 0, len(regs))
	for _, r := range regs {
		var a byte
		if _, err := fmt.Sscanf(r.Address, "0x%X", &a); err == nil {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// Writable reports whether reg is a read/write register in the map.
func Writable(reg byte) bool {
	name := fmt.Sprintf("0x%02X", reg)
	for _, r := range Registers() {
		if r.Address == name {
			return r.Access == "RW"
		}
	}
	return false
}
