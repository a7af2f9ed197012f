// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/etch_sketch/internal/accel"
	"github.com/relabs-tech/etch_sketch/internal/config"
	"github.com/relabs-tech/etch_sketch/internal/regbus"
)

const (
	calibrationDuration = 5 * time.Second
	calibrationRate     = 100 // Hz

	// Mean per-axis standard deviation in m/s².
	stillStdGood = 0.05
	stillStdBad  = 0.5

	// Confidence floor (we never want hard zero unless we error out)
	confFloor = 0.05
)

// CaptureStats summarizes a still capture.
type CaptureStats struct {
	Samples     int          `json:"samples"`
	DurationSec float64      `json:"duration_sec"`
	Mean        accel.Vector `json:"mean"`
	StdDev      accel.Vector `json:"stddev"`
}

// CalibrationResult is written to disk after a calibration run.
type CalibrationResult struct {
	SchemaVersion int          `json:"schema_version"`
	CalibrationAt string       `json:"calibration_at"` // RFC3339
	Device        string       `json:"device"`
	Stats         CaptureStats `json:"stats"`
	Offsets       [3]int8      `json:"offsets"` // OFSX, OFSY, OFSZ in 15.6 mg/LSB
	Confidence    float64      `json:"confidence"`
	Notes         []string     `json:"notes,omitempty"`
}

// offsetDevice is the part of the accelerometer used for calibration.
type offsetDevice interface {
	ReadAcceleration() (accel.Vector, error)
	SetOffsets(x, y, z int8) error
}

// captureStill samples dev at calibrationRate for dur.
func captureStill(ctx context.Context, dev offsetDevice, dur time.Duration) ([]accel.Vector, error) {
	ticker := time.NewTicker(time.Second / calibrationRate)
	defer ticker.Stop()
	deadline := time.After(dur)

	var values []accel.Vector
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return values, nil
		case <-ticker.C:
			v, err := dev.ReadAcceleration()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
	}
}

func computeStats(values []accel.Vector, dur time.Duration) CaptureStats {
	n := len(values)
	if n == 0 {
		return CaptureStats{DurationSec: dur.Seconds()}
	}
	var mean accel.Vector
	for _, v := range values {
		mean.X += v.X
		mean.Y += v.Y
		mean.Z += v.Z
	}
	mean.X /= float64(n)
	mean.Y /= float64(n)
	mean.Z /= float64(n)

	var vx, vy, vz float64
	for _, v := range values {
		dx, dy, dz := v.X-mean.X, v.Y-mean.Y, v.Z-mean.Z
		vx += dx * dx
		vy += dy * dy
		vz += dz * dz
	}
	return CaptureStats{
		Samples:     n,
		DurationSec: dur.Seconds(),
		Mean:        mean,
		StdDev: accel.Vector{
			X: math.Sqrt(vx / float64(n)),
			Y: math.Sqrt(vy / float64(n)),
			Z: math.Sqrt(vz / float64(n)),
		},
	}
}

func stillnessConfidence(std accel.Vector) float64 {
	s := (std.X + std.Y + std.Z) / 3
	switch {
	case s <= stillStdGood:
		return 1.0
	case s >= stillStdBad:
		return confFloor
	default:
		t := (s - stillStdGood) / (stillStdBad - stillStdGood)
		return math.Max(confFloor, 1.0-0.95*t)
	}
}

// calibrateFlat zeroes the offsets, captures a still reading and programs the
// offsets that level it.
func calibrateFlat(ctx context.Context, dev offsetDevice, dur time.Duration, now time.Time) (CalibrationResult, error) {
	res := CalibrationResult{
		SchemaVersion: 1,
		CalibrationAt: now.Format(time.RFC3339),
		Device:        registerDevName,
	}
	if err := dev.SetOffsets(0, 0, 0); err != nil {
		return res, err
	}
	values, err := captureStill(ctx, dev, dur)
	if err != nil {
		return res, err
	}
	if len(values) == 0 {
		return res, fmt.Errorf("calibration: no samples captured")
	}
	res.Stats = computeStats(values, dur)
	res.Confidence = stillnessConfidence(res.Stats.StdDev)

	// Z should read about +1g lying flat.
	if res.Stats.Mean.Z < 0.5*accel.StandardGravity {
		res.Notes = append(res.Notes, "z_axis_not_up")
		res.Confidence = confFloor
	}

	x, y, z := accel.OffsetsFor(res.Stats.Mean)
	res.Offsets = [3]int8{x, y, z}
	if err := dev.SetOffsets(x, y, z); err != nil {
		return res, err
	}
	return res, nil
}

func writeCalibration(dir string, res CalibrationResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	t, err := time.Parse(time.RFC3339, res.CalibrationAt)
	if err != nil {
		return "", err
	}
	name := filepath.Join(dir, fmt.Sprintf("%s_%s_calibration.json", res.Device, t.Format("2006-01-02T15-04-05")))

	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// RunCalibration walks the user through a flat offset calibration of the
// accelerometer and stores the result under dir.
func RunCalibration(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, dir string) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev := accel.New(regbus.NewI2C(bus, cfg.AccelI2CAddr))
	if err := dev.Init(); err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Accelerometer offset calibration ===")
	fmt.Fprintln(out, "Place the device flat, display facing up, and do not touch it.")
	fmt.Fprintf(out, "Press ENTER to start capture (%v)...", calibrationDuration)
	if _, err := bufio.NewReader(in).ReadString('\n'); err != nil && err != io.EOF {
		return err
	}

	res, err := calibrateFlat(ctx, dev, calibrationDuration, time.Now())
	if err != nil {
		return err
	}
	m := res.Stats.Mean
	fmt.Fprintf(out, "\nMean (m/s²): X=%.3f Y=%.3f Z=%.3f | confidence=%.2f\n", m.X, m.Y, m.Z, res.Confidence)
	fmt.Fprintf(out, "Offsets written: OFSX=%d OFSY=%d OFSZ=%d\n", res.Offsets[0], res.Offsets[1], res.Offsets[2])

	name, err := writeCalibration(dir, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote: %s\n", name)
	return nil
}
