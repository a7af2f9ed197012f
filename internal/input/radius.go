// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// FullScale is the top of the 16-bit unsigned sample range.
const FullScale = 0xFFFF

// RawSampler returns one unsigned analog sample in [0, FullScale].
type RawSampler interface {
	Sample() (uint16, error)
}

// Radius converts raw samples into a center-relative fraction.
type Radius struct {
	src RawSampler
}

// NewRadius wraps src.
func NewRadius(src RawSampler) *Radius {
	return &Radius{src: src}
}

// CurrentRadius returns (FullScale − raw) / FullScale, so the resting
// position of the control maps to the center.
func (r *Radius) CurrentRadius() (float64, error) {
	raw, err := r.src.Sample()
	if err != nil {
		return 0, fmt.Errorf("input: radius sample: %w", err)
	}
	return NormalizeRadius(raw), nil
}

// NormalizeRadius inverts and scales a raw sample to [0, 1].
func NormalizeRadius(raw uint16) float64 {
	return float64(FullScale-uint32(raw)) / FullScale
}

// ADS1115Sampler reads one single-ended ADS1115 channel.
type ADS1115Sampler struct {
	pin ads1x15.PinADC
}

var ads1115Channels = []ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// NewADS1115Sampler opens channel ch (0-3) of the ADS1115 at addr on bus.
func NewADS1115Sampler(bus i2c.Bus, addr uint16, ch int) (*ADS1115Sampler, error) {
	if ch < 0 || ch >= len(ads1115Channels) {
		return nil, fmt.Errorf("input: ADS1115 channel %d out of range 0-3", ch)
	}
	opts := ads1x15.DefaultOpts
	opts.I2cAddress = addr
	dev, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("input: ADS1115 at 0x%02X: %w", addr, err)
	}
	pin, err := dev.PinForChannel(ads1115Channels[ch], 5*physic.Volt, 860*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		return nil, fmt.Errorf("input: ADS1115 channel %d: %w", ch, err)
	}
	return &ADS1115Sampler{pin: pin}, nil
}

// Sample reads the channel. Single-ended conversions cover 0..32767, which is
// shifted up to the 16-bit range.
func (s *ADS1115Sampler) Sample() (uint16, error) {
	smp, err := s.pin.Read()
	if err != nil {
		return 0, err
	}
	return ads1115ToFullScale(smp.Raw), nil
}

func ads1115ToFullScale(raw int32) uint16 {
	if raw < 0 {
		raw = 0
	}
	if raw > 0x7FFF {
		raw = 0x7FFF
	}
	return uint16(raw)<<1 | uint16(raw>>14)
}

// Close halts the ADC channel.
func (s *ADS1115Sampler) Close() error {
	return s.pin.Halt()
}
