// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sketch is the fixed-period control loop: it polls the angle, radius
// and accelerometer, plots a trail point when the angle moves and clears the
// canvas when the device is flipped.
package sketch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/relabs-tech/etch_sketch/internal/accel"
	"github.com/relabs-tech/etch_sketch/internal/display"
)

// AngleSource reports the current angle in degrees, in [0, 360).
type AngleSource interface {
	CurrentAngle() int
}

// RadiusSource reports the current radius in [0, 1].
type RadiusSource interface {
	CurrentRadius() (float64, error)
}

// Accelerometer reads one acceleration vector in m/s².
type Accelerometer interface {
	ReadAcceleration() (accel.Vector, error)
}

// Surface is the canvas the loop draws on.
type Surface interface {
	Bounds() image.Rectangle
	Clear(c display.RGB565) error
	SetPixel(x, y int, c display.RGB565) error
}

// Observer is told about every plot and clear after it reached the surface.
type Observer interface {
	Observe(Event)
}

// Event kinds.
const (
	KindPlot  = "plot"
	KindClear = "clear"
)

// Event describes one applied canvas mutation.
type Event struct {
	Kind   string    `json:"kind"`
	X      int       `json:"x,omitempty"`
	Y      int       `json:"y,omitempty"`
	Angle  int       `json:"angle"`
	Radius float64   `json:"radius"`
	AccelZ float64   `json:"accel_z"`
	Color  uint16    `json:"color"`
	Time   time.Time `json:"time"`
}

// Config holds the loop tunables.
type Config struct {
	Period        time.Duration
	TiltThreshold float64 // m/s², clear when z is strictly below
	Foreground    display.RGB565
	Background    display.RGB565
}

// DefaultConfig matches the stock hardware: 20 ms period, clear below -5 m/s².
func DefaultConfig() Config {
	return Config{
		Period:        20 * time.Millisecond,
		TiltThreshold: -5,
		Foreground:    display.PhosphorBright,
		Background:    display.Black,
	}
}

// Loop owns the previous angle and drives the surface.
type Loop struct {
	cfg    Config
	angle  AngleSource
	radius RadiusSource
	accel  Accelerometer
	surf   Surface
	obs    Observer

	center  image.Point
	r       int
	prev    int
	started bool
	now     func() time.Time
}

// New validates cfg and wires the collaborators.
func New(cfg Config, a AngleSource, r RadiusSource, acc Accelerometer, s Surface) (*Loop, error) {
	if a == nil || r == nil || acc == nil || s == nil {
		return nil, errors.New("sketch: angle, radius, accelerometer and surface are required")
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("sketch: period must be positive, got %v", cfg.Period)
	}
	if math.IsNaN(cfg.TiltThreshold) {
		return nil, errors.New("sketch: tilt threshold is NaN")
	}
	b := s.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("sketch: surface bounds %v are empty", b)
	}
	size := min(b.Dx(), b.Dy())
	return &Loop{
		cfg:    cfg,
		angle:  a,
		radius: r,
		accel:  acc,
		surf:   s,
		center: image.Pt(b.Min.X+size/2, b.Min.Y+size/2),
		r:      size / 2,
		now:    time.Now,
	}, nil
}

// SetObserver registers o to receive events; nil disables reporting.
func (l *Loop) SetObserver(o Observer) {
	l.obs = o
}

// Start seeds the previous angle from one poll. The first Tick only plots
// once the angle moves away from this value.
func (l *Loop) Start() {
	l.prev = l.angle.CurrentAngle()
	l.started = true
}

// Tick runs one loop body. A clear always happens before a plot in the same tick.
func (l *Loop) Tick() error {
	if !l.started {
		l.Start()
	}

	angle := l.angle.CurrentAngle()
	radius, err := l.radius.CurrentRadius()
	if err != nil {
		return fmt.Errorf("sketch: read radius: %w", err)
	}
	v, err := l.accel.ReadAcceleration()
	if err != nil {
		return fmt.Errorf("sketch: read acceleration: %w", err)
	}

	if v.Z < l.cfg.TiltThreshold {
		if err := l.surf.Clear(l.cfg.Background); err != nil {
			return fmt.Errorf("sketch: clear: %w", err)
		}
		l.notify(Event{Kind: KindClear, Angle: angle, Radius: radius, AccelZ: v.Z, Color: uint16(l.cfg.Background)})
	}

	if angle == l.prev {
		return nil
	}
	l.prev = angle

	p := l.clamp(Project(angle, radius, l.center, l.r))
	if err := l.surf.SetPixel(p.X, p.Y, l.cfg.Foreground); err != nil {
		return fmt.Errorf("sketch: plot (%d, %d): %w", p.X, p.Y, err)
	}
	l.notify(Event{Kind: KindPlot, X: p.X, Y: p.Y, Angle: angle, Radius: radius, AccelZ: v.Z, Color: uint16(l.cfg.Foreground)})
	return nil
}

// Run seeds the state and ticks every Period until a tick fails or ctx is done.
// Cancellation is a normal stop and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.Start()

	ticker := time.NewTicker(l.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.Tick(); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) clamp(p image.Point) image.Point {
	b := l.surf.Bounds()
	p.X = max(b.Min.X, min(p.X, b.Max.X-1))
	p.Y = max(b.Min.Y, min(p.Y, b.Max.Y-1))
	return p
}

func (l *Loop) notify(e Event) {
	if l.obs == nil {
		return
	}
	e.Time = l.now()
	l.obs.Observe(e)
}

// Project maps a polar (angle, radius) pair onto the canvas. Screen y grows
// downwards, so 90° points up. The result may be one past the last pixel.
func Project(angleDeg int, r float64, center image.Point, radius int) image.Point {
	theta := float64(angleDeg) * math.Pi / 180
	scaled := r * float64(radius)
	return image.Point{
		X: center.X + int(math.Round(math.Cos(theta)*scaled)),
		Y: center.Y - int(math.Round(math.Sin(theta)*scaled)),
	}
}
