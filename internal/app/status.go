// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/etch_sketch/internal/sketch"
)

// statusData is the latest state shown on the status panel.
type statusData struct {
	last   sketch.Event
	plots  int
	clears int
}

// StatusPanel shows the loop state on a 128x64 SSD1306 next to the round
// display. It observes loop events and redraws on its own ticker.
type StatusPanel struct {
	dev *ssd1306.Dev

	mu   sync.Mutex
	data statusData

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// ssd1306Addr is the address the driver always talks to.
const ssd1306Addr = 0x3C

// remapBus redirects transactions for one address to another, so a panel
// strapped to 0x3D can be driven by a driver fixed at 0x3C.
type remapBus struct {
	i2c.Bus
	from, to uint16
}

func (b *remapBus) Tx(addr uint16, w, r []byte) error {
	if addr == b.from {
		addr = b.to
	}
	return b.Bus.Tx(addr, w, r)
}

// NewStatusPanel opens the SSD1306 at addr and shows the splash screen.
func NewStatusPanel(bus i2c.Bus, addr uint16) (*StatusPanel, error) {
	if addr != ssd1306Addr {
		bus = &remapBus{Bus: bus, from: ssd1306Addr, to: addr}
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize status display: %w", err)
	}
	log.Printf("status: display initialized at 0x%02X", addr)

	s := &StatusPanel{dev: dev, stop: make(chan struct{})}
	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("status: error showing splash: %v", err)
	}
	return s, nil
}

// Observe records e; it never touches the bus.
func (s *StatusPanel) Observe(e sketch.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.last = e
	switch e.Kind {
	case sketch.KindPlot:
		s.data.plots++
	case sketch.KindClear:
		s.data.clears++
	}
}

// Start redraws every interval in the background until ctx is done or Close
// is called.
func (s *StatusPanel) Start(ctx context.Context, interval time.Duration) {
	s.wg.Add(1)
	go s.run(ctx, interval)
}

func (s *StatusPanel) run(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			snapshot := s.data
			s.mu.Unlock()

			if err := s.dev.Draw(s.dev.Bounds(), renderStatus(snapshot), image.Point{}); err != nil {
				log.Printf("status: error updating display: %v", err)
			}
		}
	}
}

// Close stops the redraw loop and turns the panel off.
func (s *StatusPanel) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		err = s.dev.Halt()
	})
	return err
}

func newStatusImage() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func renderStatus(d statusData) *image1bit.VerticalLSB {
	img, drawer := newStatusImage()

	if d.plots == 0 && d.clears == 0 {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawString("Etch Sketch")
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawString("Waiting...")
		return img
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString(fmt.Sprintf("Ang: %3d deg", d.last.Angle))
	drawer.Dot = fixed.P(0, 26)
	drawer.DrawString(fmt.Sprintf("Rad: %4.2f", d.last.Radius))
	drawer.Dot = fixed.P(0, 39)
	drawer.DrawString(fmt.Sprintf("Z:  %6.2f", d.last.AccelZ))
	drawer.Dot = fixed.P(0, 52)
	drawer.DrawString(fmt.Sprintf("P:%d C:%d", d.plots, d.clears))
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newStatusImage()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Etch Sketch")
	drawer.Dot = fixed.P(5, 43)
	drawer.DrawString("Turn the knob")
	drawer.Dot = fixed.P(10, 56)
	drawer.DrawString("Flip to clear")
	return img
}
