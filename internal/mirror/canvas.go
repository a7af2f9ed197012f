// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mirror keeps an in-memory copy of the sketch canvas, fed either
// directly as a surface or from published plot/clear events.
package mirror

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/etch_sketch/internal/display"
	"github.com/relabs-tech/etch_sketch/internal/sketch"
)

// captionHeight is the strip added under the canvas when a caption is drawn.
const captionHeight = 18

// Canvas is a concurrency-safe RGBA copy of the panel.
type Canvas struct {
	mu     sync.RWMutex
	img    *image.RGBA
	plots  int
	clears int
	last   sketch.Event
}

// NewCanvas returns a size×size canvas filled with background.
func NewCanvas(size int, background display.RGB565) *Canvas {
	c := &Canvas{img: image.NewRGBA(image.Rect(0, 0, size, size))}
	c.fill(background)
	return c
}

func (c *Canvas) Bounds() image.Rectangle {
	return c.img.Bounds()
}

// Clear fills the whole canvas.
func (c *Canvas) Clear(col display.RGB565) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fill(col)
	c.clears++
	return nil
}

func (c *Canvas) fill(col display.RGB565) {
	draw.Draw(c.img, c.img.Bounds(), &image.Uniform{col}, image.Point{}, draw.Src)
}

// SetPixel paints one pixel.
func (c *Canvas) SetPixel(x, y int, col display.RGB565) error {
	if !image.Pt(x, y).In(c.img.Bounds()) {
		return fmt.Errorf("mirror: pixel (%d, %d) outside %v", x, y, c.img.Bounds())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img.Set(x, y, col)
	c.plots++
	return nil
}

// Apply replays a published event onto the canvas.
func (c *Canvas) Apply(e sketch.Event) error {
	var err error
	switch e.Kind {
	case sketch.KindClear:
		err = c.Clear(display.RGB565(e.Color))
	case sketch.KindPlot:
		err = c.SetPixel(e.X, e.Y, display.RGB565(e.Color))
	default:
		return fmt.Errorf("mirror: unknown event kind %q", e.Kind)
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.last = e
	c.mu.Unlock()
	return nil
}

// Stats reports the number of plots and clears applied, and the last event.
func (c *Canvas) Stats() (plots, clears int, last sketch.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.plots, c.clears, c.last
}

// Snapshot returns a copy of the current canvas.
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := image.NewRGBA(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}

// WritePNG encodes the canvas as PNG. A non-empty caption adds a text strip
// under the image.
func (c *Canvas) WritePNG(w io.Writer, caption string) error {
	snap := c.Snapshot()
	if caption == "" {
		return png.Encode(w, snap)
	}

	b := snap.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+captionHeight))
	draw.Draw(out, out.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)
	draw.Draw(out, b, snap, b.Min, draw.Src)

	drawer := &font.Drawer{
		Dst:  out,
		Src:  &image.Uniform{display.PhosphorDark},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(2, b.Dy()+captionHeight-4),
	}
	drawer.DrawString(caption)

	return png.Encode(w, out)
}

// Caption is the default status line for the mirror image.
func (c *Canvas) Caption() string {
	plots, clears, last := c.Stats()
	if plots == 0 && clears == 0 {
		return "Waiting..."
	}
	return fmt.Sprintf("A:%3d R:%.2f P:%d C:%d", last.Angle, last.Radius, plots, clears)
}
