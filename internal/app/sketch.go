// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/etch_sketch/internal/accel"
	"github.com/relabs-tech/etch_sketch/internal/config"
	"github.com/relabs-tech/etch_sketch/internal/display"
	"github.com/relabs-tech/etch_sketch/internal/input"
	"github.com/relabs-tech/etch_sketch/internal/mirror"
	"github.com/relabs-tech/etch_sketch/internal/regbus"
	"github.com/relabs-tech/etch_sketch/internal/sim"
	"github.com/relabs-tech/etch_sketch/internal/sketch"
	"github.com/relabs-tech/etch_sketch/internal/telemetry"
)

// peripherals is everything the loop reads from and draws on. closers are
// released in reverse order of acquisition.
type peripherals struct {
	angle   sketch.AngleSource
	radius  sketch.RadiusSource
	accel   sketch.Accelerometer
	surface sketch.Surface
	bus     i2c.Bus // nil when simulated
	closers []io.Closer
}

func (p *peripherals) add(c io.Closer) {
	p.closers = append(p.closers, c)
}

func (p *peripherals) Close() error {
	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			log.Printf("sketch: release: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	p.closers = nil
	return first
}

// RunSketch brings up the peripherals, then runs the control loop until ctx
// is done or a tick fails. A missing accelerometer is reported before any
// tick runs.
func RunSketch(ctx context.Context, cfg *config.Config) error {
	log.Println("sketch: starting")

	var (
		p   *peripherals
		err error
	)
	if cfg.Simulate {
		p = openSimulated(cfg)
	} else {
		p, err = openHardware(cfg)
		if err != nil {
			return err
		}
	}
	defer p.Close()

	loopCfg := sketch.Config{
		Period:        cfg.LoopPeriod(),
		TiltThreshold: cfg.TiltThreshold,
		Foreground:    cfg.Foreground,
		Background:    cfg.Background,
	}
	loop, err := sketch.New(loopCfg, p.angle, p.radius, p.accel, p.surface)
	if err != nil {
		return err
	}

	var observers fanout
	if cfg.MQTTBroker != "" {
		client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDSketch)
		if err != nil {
			log.Printf("sketch: telemetry disabled: %v", err)
		} else {
			defer client.Disconnect(250)
			log.Printf("sketch: publishing to %s (%s, %s)", cfg.MQTTBroker, cfg.TopicPlot, cfg.TopicClear)
			observers = append(observers, telemetry.NewPublisher(client, telemetry.Topics{Plot: cfg.TopicPlot, Clear: cfg.TopicClear}))
		}
	}
	if p.bus != nil && cfg.StatusI2CAddr != 0 {
		status, err := NewStatusPanel(p.bus, cfg.StatusI2CAddr)
		if err != nil {
			log.Printf("sketch: status panel disabled: %v", err)
		} else {
			defer status.Close()
			status.Start(ctx, time.Duration(cfg.StatusInterval)*time.Millisecond)
			observers = append(observers, status)
		}
	}
	if len(observers) > 0 {
		loop.SetObserver(observers)
	}

	log.Printf("sketch: loop running every %v, clear below %.2f m/s²", loopCfg.Period, loopCfg.TiltThreshold)
	if err := loop.Run(ctx); err != nil {
		return err
	}
	log.Println("sketch: stopped")
	return nil
}

func openSimulated(cfg *config.Config) *peripherals {
	log.Println("sketch: using simulated peripherals")
	clock := sim.NewClock()
	return &peripherals{
		angle:   sim.NewAngle(clock, 45),
		radius:  sim.NewRadius(clock),
		accel:   sim.NewAccelerometer(clock, 30*time.Second, time.Second),
		surface: mirror.NewCanvas(cfg.DisplaySize, cfg.Background),
	}
}

func openHardware(cfg *config.Config) (_ *peripherals, err error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	p := &peripherals{}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}
	p.add(bus)
	p.bus = bus

	acc := accel.New(regbus.NewI2C(bus, cfg.AccelI2CAddr))
	if err := acc.Init(); err != nil {
		return nil, fmt.Errorf("accelerometer at 0x%02X: %w", cfg.AccelI2CAddr, err)
	}
	log.Printf("sketch: %s ready", acc)
	p.accel = acc

	adc, err := input.NewADS1115Sampler(bus, cfg.ADCI2CAddr, cfg.ADCChannel)
	if err != nil {
		return nil, err
	}
	p.add(adc)
	p.radius = input.NewRadius(adc)

	clk, err := pinByName(cfg.EncoderCLKPin)
	if err != nil {
		return nil, err
	}
	dt, err := pinByName(cfg.EncoderDTPin)
	if err != nil {
		return nil, err
	}
	enc, err := input.NewEncoder(clk, dt, input.NewAngleCounter(cfg.EncoderReverse))
	if err != nil {
		return nil, err
	}
	p.add(enc)
	p.angle = enc

	port, err := spireg.Open(cfg.SPIDevice)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port: %w", err)
	}
	dc, err := pinByName(cfg.DisplayDCPin)
	if err != nil {
		port.Close()
		return nil, err
	}
	opts := &display.Opts{
		W:    cfg.DisplaySize,
		H:    cfg.DisplaySize,
		Freq: physic.Frequency(cfg.DisplaySPIHz) * physic.Hertz,
		RST:  optionalPin(cfg.DisplayRSTPin),
		BL:   optionalPin(cfg.DisplayBLPin),
	}
	panel, err := display.NewSPI(port, dc, opts)
	if err != nil {
		port.Close()
		return nil, err
	}
	p.add(panel)
	if err := panel.Init(cfg.Background); err != nil {
		return nil, err
	}
	log.Printf("sketch: %s ready", panel)
	p.surface = panel

	return p, nil
}

func pinByName(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return pin, nil
}

func optionalPin(name string) gpio.PinOut {
	if name == "" {
		return nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		log.Printf("sketch: optional pin %q not found, ignoring", name)
		return nil
	}
	return pin
}

// fanout forwards events to several observers in order.
type fanout []sketch.Observer

func (f fanout) Observe(e sketch.Event) {
	for _, o := range f {
		o.Observe(e)
	}
}
