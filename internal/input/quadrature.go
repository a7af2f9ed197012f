// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

import "periph.io/x/conn/v3/gpio"

// Full-step decoder states. A detent is reported only after the complete
// 11 → 01 → 00 → 10 → 11 (or reverse) cycle, which discards contact bounce.
const (
	qStart = iota
	qCWFinal
	qCWBegin
	qCWNext
	qCCWBegin
	qCCWFinal
	qCCWNext

	qDirCW  = 0x10
	qDirCCW = 0x20
)

// indexed by [state][clk<<1|dt]
var quadratureTable = [7][4]byte{
	qStart:    {qStart, qCWBegin, qCCWBegin, qStart},
	qCWFinal:  {qCWNext, qStart, qCWFinal, qStart | qDirCW},
	qCWBegin:  {qCWNext, qCWBegin, qStart, qStart},
	qCWNext:   {qCWNext, qCWBegin, qCWFinal, qStart},
	qCCWBegin: {qCCWNext, qStart, qCCWBegin, qStart},
	qCCWFinal: {qCCWNext, qCCWFinal, qStart, qStart | qDirCCW},
	qCCWNext:  {qCCWNext, qCCWFinal, qCCWBegin, qStart},
}

// Quadrature decodes clk/dt level pairs into detent steps.
type Quadrature struct {
	state byte
}

// Update feeds the current pin levels and returns +1 (clockwise), -1
// (counter-clockwise) or 0.
func (q *Quadrature) Update(clk, dt gpio.Level) int {
	var idx byte
	if clk {
		idx |= 2
	}
	if dt {
		idx |= 1
	}
	next := quadratureTable[q.state&0x0F][idx]
	q.state = next & 0x0F
	switch next & 0x30 {
	case qDirCW:
		return 1
	case qDirCCW:
		return -1
	}
	return 0
}
