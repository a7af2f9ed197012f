// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display controls a GC9A01 240x240 round TFT via SPI.
package display

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Command set used by the driver.
const (
	cmdSleepIn    = 0x10
	cmdSleepOut   = 0x11
	cmdInvertOn   = 0x21
	cmdDisplayOff = 0x28
	cmdDisplayOn  = 0x29
	cmdColumnSet  = 0x2A
	cmdRowSet     = 0x2B
	cmdMemWrite   = 0x2C
	cmdTearingOn  = 0x35
	cmdMADCTL     = 0x36
	cmdPixelFmt   = 0x3A
)

// MADCTL per rotation, BGR order.
var madctl = [4]byte{0x48, 0x28, 0x88, 0xE8}

// defaultMaxTx is used when the connection does not report a limit.
const defaultMaxTx = 4096

// Opts is the configuration for the panel.
type Opts struct {
	W, H     int              // default 240x240
	Rotation int              // 0-3, fixed at boot
	Freq     physic.Frequency // default 40MHz

	RST gpio.PinOut // optional
	BL  gpio.PinOut // optional backlight
}

// DefaultOpts matches the 1.28" round module.
var DefaultOpts = Opts{W: 240, H: 240, Freq: 40 * physic.MegaHertz}

// GC9A01 is the device handle. It owns the SPI port.
type GC9A01 struct {
	port spi.Port
	c    spi.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
	bl   gpio.PinOut

	rect     image.Rectangle
	rotation int
	maxTx    int

	initialized bool
	closed      bool
}

type initCmd struct {
	cmd   byte
	data  []byte
	delay time.Duration
}

// initSequence is the vendor register setup for the panel.
var initSequence = []initCmd{
	{cmd: 0xEF},
	{cmd: 0xEB, data: []byte{0x14}},
	{cmd: 0xFE},
	{cmd: 0xEF},
	{cmd: 0xEB, data: []byte{0x14}},
	{cmd: 0x84, data: []byte{0x40}},
	{cmd: 0x85, data: []byte{0xFF}},
	{cmd: 0x86, data: []byte{0xFF}},
	{cmd: 0x87, data: []byte{0xFF}},
	{cmd: 0x88, data: []byte{0x0A}},
	{cmd: 0x89, data: []byte{0x21}},
	{cmd: 0x8A, data: []byte{0x00}},
	{cmd: 0x8B, data: []byte{0x80}},
	{cmd: 0x8C, data: []byte{0x01}},
	{cmd: 0x8D, data: []byte{0x01}},
	{cmd: 0x8E, data: []byte{0xFF}},
	{cmd: 0x8F, data: []byte{0xFF}},
	{cmd: 0xB6, data: []byte{0x00, 0x20}},
	{cmd: cmdPixelFmt, data: []byte{0x05}}, // 16 bits per pixel
	{cmd: 0x90, data: []byte{0x08, 0x08, 0x08, 0x08}},
	{cmd: 0xBD, data: []byte{0x06}},
	{cmd: 0xBC, data: []byte{0x00}},
	{cmd: 0xFF, data: []byte{0x60, 0x01, 0x04}},
	{cmd: 0xC3, data: []byte{0x13}},
	{cmd: 0xC4, data: []byte{0x13}},
	{cmd: 0xC9, data: []byte{0x22}},
	{cmd: 0xBE, data: []byte{0x11}},
	{cmd: 0xE1, data: []byte{0x10, 0x0E}},
	{cmd: 0xDF, data: []byte{0x21, 0x0C, 0x02}},
	{cmd: 0xF0, data: []byte{0x45, 0x09, 0x08, 0x08, 0x26, 0x2A}},
	{cmd: 0xF1, data: []byte{0x43, 0x70, 0x72, 0x36, 0x37, 0x6F}},
	{cmd: 0xF2, data: []byte{0x45, 0x09, 0x08, 0x08, 0x26, 0x2A}},
	{cmd: 0xF3, data: []byte{0x43, 0x70, 0x72, 0x36, 0x37, 0x6F}},
	{cmd: 0xED, data: []byte{0x1B, 0x0B}},
	{cmd: 0xAE, data: []byte{0x77}},
	{cmd: 0xCD, data: []byte{0x63}},
	{cmd: 0x70, data: []byte{0x07, 0x07, 0x04, 0x0E, 0x0F, 0x09, 0x07, 0x08, 0x03}},
	{cmd: 0xE8, data: []byte{0x34}},
	{cmd: 0x62, data: []byte{0x18, 0x0D, 0x71, 0xED, 0x70, 0x70, 0x18, 0x0F, 0x71, 0xEF, 0x70, 0x70}},
	{cmd: 0x63, data: []byte{0x18, 0x11, 0x71, 0xF1, 0x70, 0x70, 0x18, 0x13, 0x71, 0xF3, 0x70, 0x70}},
	{cmd: 0x64, data: []byte{0x28, 0x29, 0xF1, 0x01, 0xF1, 0x00, 0x07}},
	{cmd: 0x66, data: []byte{0x3C, 0x00, 0xCD, 0x67, 0x45, 0x45, 0x10, 0x00, 0x00, 0x00}},
	{cmd: 0x67, data: []byte{0x00, 0x3C, 0x00, 0x00, 0x00, 0x01, 0x54, 0x10, 0x32, 0x98}},
	{cmd: 0x74, data: []byte{0x10, 0x85, 0x80, 0x00, 0x00, 0x4E, 0x00}},
	{cmd: 0x98, data: []byte{0x3E, 0x07}},
	{cmd: cmdTearingOn},
	{cmd: cmdInvertOn},
	{cmd: cmdSleepOut, delay: 120 * time.Millisecond},
	{cmd: cmdDisplayOn, delay: 20 * time.Millisecond},
}

// sleep is replaced in tests.
var sleep = time.Sleep

// NewSPI connects to the panel in SPI mode 0. dc selects command (low) or
// data (high). opts may be nil for DefaultOpts. The panel is not touched
// until Init.
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*GC9A01, error) {
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	w, h := opts.W, opts.H
	if w == 0 && h == 0 {
		w, h = DefaultOpts.W, DefaultOpts.H
	}
	if w <= 0 || h <= 0 || w > 240 || h > 240 {
		return nil, fmt.Errorf("gc9a01: invalid size %dx%d", w, h)
	}
	if opts.Rotation < 0 || opts.Rotation > 3 {
		return nil, fmt.Errorf("gc9a01: rotation must be 0-3, got %d", opts.Rotation)
	}
	if dc == nil {
		return nil, errors.New("gc9a01: dc pin is required")
	}
	freq := opts.Freq
	if freq == 0 {
		freq = DefaultOpts.Freq
	}

	c, err := p.Connect(freq, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("gc9a01: spi connect: %w", err)
	}

	maxTx := defaultMaxTx
	if l, ok := c.(conn.Limits); ok && l.MaxTxSize() > 0 {
		maxTx = l.MaxTxSize()
	}

	return &GC9A01{
		port:     p,
		c:        c,
		dc:       dc,
		rst:      opts.RST,
		bl:       opts.BL,
		rect:     image.Rect(0, 0, w, h),
		rotation: opts.Rotation,
		maxTx:    maxTx,
	}, nil
}

// Init resets and configures the panel, turns the backlight on and fills
// the canvas with background.
func (d *GC9A01) Init(background RGB565) error {
	if d.closed {
		return errors.New("gc9a01: closed")
	}
	if d.rst != nil {
		for _, step := range []struct {
			l gpio.Level
			t time.Duration
		}{{gpio.High, 10 * time.Millisecond}, {gpio.Low, 10 * time.Millisecond}, {gpio.High, 120 * time.Millisecond}} {
			if err := d.rst.Out(step.l); err != nil {
				return fmt.Errorf("gc9a01: reset pin: %w", err)
			}
			sleep(step.t)
		}
	}

	d.initialized = true
	for _, ic := range initSequence {
		if err := d.command(ic.cmd, ic.data...); err != nil {
			return fmt.Errorf("gc9a01: init 0x%02X: %w", ic.cmd, err)
		}
		if ic.delay > 0 {
			sleep(ic.delay)
		}
	}
	if err := d.command(cmdMADCTL, madctl[d.rotation]); err != nil {
		return fmt.Errorf("gc9a01: rotation: %w", err)
	}

	if d.bl != nil {
		if err := d.bl.Out(gpio.High); err != nil {
			return fmt.Errorf("gc9a01: backlight: %w", err)
		}
	}
	return d.Clear(background)
}

// Clear fills the whole canvas with c.
func (d *GC9A01) Clear(c RGB565) error {
	if d.closed {
		return errors.New("gc9a01: closed")
	}
	if err := d.window(d.rect); err != nil {
		return err
	}
	px := c.Bytes()
	chunk := make([]byte, d.maxTx-d.maxTx%2)
	for i := 0; i < len(chunk); i += 2 {
		chunk[i], chunk[i+1] = px[0], px[1]
	}
	remaining := d.rect.Dx() * d.rect.Dy() * 2
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for remaining > 0 {
		n := min(remaining, len(chunk))
		if err := d.c.Tx(chunk[:n], nil); err != nil {
			return fmt.Errorf("gc9a01: fill: %w", err)
		}
		remaining -= n
	}
	return nil
}

// SetPixel writes one pixel. Coordinates outside Bounds are rejected.
func (d *GC9A01) SetPixel(x, y int, c RGB565) error {
	if d.closed {
		return errors.New("gc9a01: closed")
	}
	if !(image.Point{X: x, Y: y}).In(d.rect) {
		return fmt.Errorf("gc9a01: pixel (%d,%d) outside %v", x, y, d.rect)
	}
	if err := d.window(image.Rect(x, y, x+1, y+1)); err != nil {
		return err
	}
	px := c.Bytes()
	return d.sendData(px[:])
}

// window selects r for the following memory write.
func (d *GC9A01) window(r image.Rectangle) error {
	x0, x1 := r.Min.X, r.Max.X-1
	y0, y1 := r.Min.Y, r.Max.Y-1
	if err := d.command(cmdColumnSet, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return fmt.Errorf("gc9a01: column set: %w", err)
	}
	if err := d.command(cmdRowSet, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1)); err != nil {
		return fmt.Errorf("gc9a01: row set: %w", err)
	}
	return d.command(cmdMemWrite)
}

// command sends cmd with DC low, then its parameters with DC high.
func (d *GC9A01) command(cmd byte, data ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return d.sendData(data)
}

func (d *GC9A01) sendData(data []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	return d.c.Tx(data, nil)
}

// Bounds returns the canvas rectangle.
func (d *GC9A01) Bounds() image.Rectangle {
	return d.rect
}

// ColorModel returns RGB565Model.
func (d *GC9A01) ColorModel() color.Model {
	return RGB565Model
}

// Close puts an initialized panel to sleep, switches the backlight off and
// closes the SPI port. It is safe after a failed Init and on repeat calls.
func (d *GC9A01) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if d.initialized {
		if err := d.command(cmdDisplayOff); err != nil {
			errs = append(errs, fmt.Errorf("gc9a01: display off: %w", err))
		}
		if err := d.command(cmdSleepIn); err != nil {
			errs = append(errs, fmt.Errorf("gc9a01: sleep in: %w", err))
		}
	}
	if d.bl != nil {
		if err := d.bl.Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("gc9a01: backlight off: %w", err))
		}
	}
	if cl, ok := d.port.(io.Closer); ok {
		if err := cl.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gc9a01: close port: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (d *GC9A01) String() string {
	return fmt.Sprintf("gc9a01.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}
