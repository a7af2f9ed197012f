// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim provides peripherals that generate smooth changing values so the
// sketch loop can run without hardware.
package sim

import (
	"math"
	"time"

	"github.com/relabs-tech/etch_sketch/internal/accel"
)

// Clock is shared by the simulated peripherals.
type Clock struct {
	start time.Time
	now   func() time.Time
}

// NewClock starts a clock at the current time.
func NewClock() *Clock {
	return NewClockFunc(time.Now)
}

// NewClockFunc starts a clock driven by now.
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{start: now(), now: now}
}

func (c *Clock) elapsed() float64 {
	return c.now().Sub(c.start).Seconds()
}

// Angle turns at a fixed rate, as if someone were spinning the knob.
type Angle struct {
	clock *Clock
	rate  float64 // degrees per second
}

// NewAngle returns an angle source turning at degPerSec.
func NewAngle(c *Clock, degPerSec float64) *Angle {
	return &Angle{clock: c, rate: degPerSec}
}

func (a *Angle) CurrentAngle() int {
	deg := math.Mod(a.clock.elapsed()*a.rate, 360)
	if deg < 0 {
		deg += 360
	}
	return int(deg)
}

// Radius breathes between 0.2 and 1.0.
type Radius struct {
	clock *Clock
}

func NewRadius(c *Clock) *Radius {
	return &Radius{clock: c}
}

func (r *Radius) CurrentRadius() (float64, error) {
	return 0.6 + 0.4*math.Sin(r.clock.elapsed()*0.3), nil
}

// Accelerometer lies flat and is briefly turned upside down once per FlipEvery.
type Accelerometer struct {
	clock     *Clock
	FlipEvery time.Duration
	FlipFor   time.Duration
}

func NewAccelerometer(c *Clock, every, hold time.Duration) *Accelerometer {
	return &Accelerometer{clock: c, FlipEvery: every, FlipFor: hold}
}

// ReadAcceleration returns gravity for a slowly wobbling board, rolled 180°
// while flipped.
func (a *Accelerometer) ReadAcceleration() (accel.Vector, error) {
	t := a.clock.elapsed()
	roll := 5 * math.Sin(t) * math.Pi / 180
	pitch := 3 * math.Cos(t*0.7) * math.Pi / 180
	if a.flipped() {
		roll += math.Pi
	}
	return gravity(roll, pitch), nil
}

func (a *Accelerometer) flipped() bool {
	if a.FlipEvery <= 0 {
		return false
	}
	since := a.clock.now().Sub(a.clock.start) % a.FlipEvery
	return since >= a.FlipEvery-a.FlipFor
}

// gravity is the accelerometer reading at rest for the given roll and pitch.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func gravity(roll, pitch float64) accel.Vector {
	g := accel.StandardGravity
	return accel.Vector{
		X: -g * math.Sin(pitch),
		Y: g * math.Cos(pitch) * math.Sin(roll),
		Z: g * math.Cos(pitch) * math.Cos(roll),
	}
}
