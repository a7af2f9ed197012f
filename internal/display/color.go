// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"image/color"
)

// RGB565 is a 16-bit packed color: 5 bits red, 6 bits green, 5 bits blue.
type RGB565 uint16

// Color565 packs 8-bit channels into RGB565.
func Color565(r, g, b uint8) RGB565 {
	return RGB565(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3)
}

// Common colors.
const (
	Black RGB565 = 0x0000
	White RGB565 = 0xFFFF
)

// Phosphor trail colors.
var (
	PhosphorBright = Color565(120, 247, 180)
	PhosphorDark   = Color565(45, 217, 80)
)

// RGBA implements color.Color, expanding each channel to 16 bits.
func (c RGB565) RGBA() (r, g, b, a uint32) {
	r5 := uint32(c>>11) & 0x1F
	g6 := uint32(c>>5) & 0x3F
	b5 := uint32(c) & 0x1F
	r8 := r5<<3 | r5>>2
	g8 := g6<<2 | g6>>4
	b8 := b5<<3 | b5>>2
	return r8 | r8<<8, g8 | g8<<8, b8 | b8<<8, 0xFFFF
}

// Bytes returns the big-endian wire order used by the panel.
func (c RGB565) Bytes() [2]byte {
	return [2]byte{byte(c >> 8), byte(c)}
}

func (c RGB565) String() string {
	return fmt.Sprintf("RGB565(0x%04X)", uint16(c))
}

// RGB565Model converts any color to RGB565.
var RGB565Model = color.ModelFunc(func(c color.Color) color.Color {
	if v, ok := c.(RGB565); ok {
		return v
	}
	r, g, b, _ := c.RGBA()
	return Color565(uint8(r>>8), uint8(g>>8), uint8(b>>8))
})
