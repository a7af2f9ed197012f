// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package input turns the rotary encoder and the potentiometer into polled values.
package input

import "fmt"

// RangeMode selects what a Counter does past its bounds.
type RangeMode int

const (
	// RangeWrap wraps modulo the span in both directions.
	RangeWrap RangeMode = iota
	// RangeBounded clamps to [Min, Max).
	RangeBounded
)

func (m RangeMode) String() string {
	switch m {
	case RangeWrap:
		return "wrap"
	case RangeBounded:
		return "bounded"
	default:
		return fmt.Sprintf("RangeMode(%d)", int(m))
	}
}

// Counter is a bounded integer over [Min, Max) moved one step per detent.
type Counter struct {
	min, max int
	mode     RangeMode
	reverse  bool
	value    int
}

// NewCounter returns a counter over [lo, hi) starting at lo.
func NewCounter(lo, hi int, mode RangeMode, reverse bool) (*Counter, error) {
	if hi <= lo {
		return nil, fmt.Errorf("input: counter range [%d, %d) is empty", lo, hi)
	}
	return &Counter{min: lo, max: hi, mode: mode, reverse: reverse, value: lo}, nil
}

// NewAngleCounter is the [0, 360) wrapping counter used for the angle control.
func NewAngleCounter(reverse bool) *Counter {
	return &Counter{min: 0, max: 360, mode: RangeWrap, reverse: reverse}
}

// Step moves the counter by delta (direction flipped when reversed) and returns the new value.
func (c *Counter) Step(delta int) int {
	if c.reverse {
		delta = -delta
	}
	c.value = c.normalize(c.value + delta)
	return c.value
}

// Set forces the value through the range policy, ignoring direction.
func (c *Counter) Set(v int) int {
	c.value = c.normalize(v)
	return c.value
}

// Value returns the current value.
func (c *Counter) Value() int {
	return c.value
}

func (c *Counter) normalize(v int) int {
	if c.mode == RangeBounded {
		return max(c.min, min(v, c.max-1))
	}
	span := c.max - c.min
	return c.min + ((v-c.min)%span+span)%span
}
