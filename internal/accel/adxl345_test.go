package accel

import (
	"errors"
	"math"
	"testing"

	"github.com/relabs-tech/etch_sketch/internal/regbus"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func newPlayback(ops ...i2ctest.IO) (*ADXL345, *i2ctest.Playback) {
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	return New(regbus.NewI2C(bus, DefaultAddr)), bus
}

func TestVerifyIdentity(t *testing.T) {
	tests := []struct {
		name    string
		id      byte
		wantErr bool
	}{
		{"adxl345", 0xE5, false},
		{"zero", 0x00, true},
		{"other device", 0x68, true},
		{"off by one", 0xE4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newPlayback(i2ctest.IO{Addr: DefaultAddr, W: []byte{RegDeviceID}, R: []byte{tt.id}})
			err := d.VerifyIdentity()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("VerifyIdentity() error = %v", err)
				}
				return
			}
			var nf *DeviceNotFoundError
			if !errors.As(err, &nf) {
				t.Fatalf("VerifyIdentity() error = %v, want *DeviceNotFoundError", err)
			}
			if nf.Got != tt.id || nf.Want != ExpectedDeviceID {
				t.Errorf("DeviceNotFoundError = %+v", nf)
			}
		})
	}
}

func TestVerifyIdentityBusFailure(t *testing.T) {
	d, _ := newPlayback()
	err := d.VerifyIdentity()
	var ioErr *regbus.BusIOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("VerifyIdentity() error = %v, want *regbus.BusIOError", err)
	}
}

func TestEnableMeasurementReadModifyWrite(t *testing.T) {
	tests := []struct {
		name    string
		current byte
		written byte
	}{
		{"standby", 0x00, 0x08},
		{"already measuring", 0x08, 0x08},
		{"keeps link and sleep bits", 0x24, 0x2C},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, bus := newPlayback(
				i2ctest.IO{Addr: DefaultAddr, W: []byte{RegPowerCtl}, R: []byte{tt.current}},
				i2ctest.IO{Addr: DefaultAddr, W: []byte{RegPowerCtl, tt.written}},
			)
			if err := d.EnableMeasurement(); err != nil {
				t.Fatalf("EnableMeasurement() error = %v", err)
			}
			if err := bus.Close(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestInitStopsOnUnknownDevice(t *testing.T) {
	// Only the DEVID read is scripted: any further write would fail the playback.
	d, bus := newPlayback(i2ctest.IO{Addr: DefaultAddr, W: []byte{RegDeviceID}, R: []byte{0x00}})

	err := d.Init()
	var nf *DeviceNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Init() error = %v, want *DeviceNotFoundError", err)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestInit(t *testing.T) {
	d, bus := newPlayback(
		i2ctest.IO{Addr: DefaultAddr, W: []byte{RegDeviceID}, R: []byte{0xE5}},
		i2ctest.IO{Addr: DefaultAddr, W: []byte{RegPowerCtl}, R: []byte{0x00}},
		i2ctest.IO{Addr: DefaultAddr, W: []byte{RegPowerCtl, 0x08}},
		i2ctest.IO{Addr: DefaultAddr, W: []byte{RegDataFormat, 0x0B}},
	)
	if err := d.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestReadAcceleration(t *testing.T) {
	d, _ := newPlayback(i2ctest.IO{
		Addr: DefaultAddr,
		W:    []byte{RegDataX0},
		R:    []byte{0x00, 0x00, 0x00, 0x00, 0xCE, 0xFF},
	})

	v, err := d.ReadAcceleration()
	if err != nil {
		t.Fatalf("ReadAcceleration() error = %v", err)
	}
	wantZ := -50.0 / 256.0 * 9.80665
	if v.X != 0 || v.Y != 0 {
		t.Errorf("X, Y = %v, %v, want 0, 0", v.X, v.Y)
	}
	if math.Abs(v.Z-wantZ) > 1e-9 {
		t.Errorf("Z = %v, want %v", v.Z, wantZ)
	}
	if math.Abs(v.Z-(-1.915)) > 0.01 {
		t.Errorf("Z = %v, want about -1.915 m/s²", v.Z)
	}
}

func TestReadAccelerationBusFailure(t *testing.T) {
	d, _ := newPlayback()
	_, err := d.ReadAcceleration()
	var ioErr *regbus.BusIOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("ReadAcceleration() error = %v, want *regbus.BusIOError", err)
	}
	if ioErr.Reg != RegDataX0 {
		t.Errorf("failed register = 0x%02X, want 0x%02X", ioErr.Reg, RegDataX0)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     [6]byte
		x, y, z float64
	}{
		{"one g on z", [6]byte{0, 0, 0, 0, 0x00, 0x01}, 0, 0, StandardGravity},
		{"minus one g on x", [6]byte{0x00, 0xFF, 0, 0, 0, 0}, -StandardGravity, 0, 0},
		{"int16 limits", [6]byte{0xFF, 0x7F, 0x00, 0x80, 0, 0}, 32767 * GPerLSB * StandardGravity, -32768 * GPerLSB * StandardGravity, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Decode(tt.raw)
			if math.Abs(v.X-tt.x) > 1e-9 || math.Abs(v.Y-tt.y) > 1e-9 || math.Abs(v.Z-tt.z) > 1e-9 {
				t.Errorf("Decode() = %v, want X:%.3f Y:%.3f Z:%.3f", v, tt.x, tt.y, tt.z)
			}
		})
	}
}

func TestRegisterMap(t *testing.T) {
	if !Writable(RegPowerCtl) {
		t.Error("POWER_CTL should be writable")
	}
	if Writable(RegDeviceID) {
		t.Error("DEVID should not be writable")
	}
	if Writable(RegDataX0) {
		t.Error("DATAX0 should not be writable")
	}
	if Writable(0x01) {
		t.Error("reserved 0x01 should not be writable")
	}

	addrs := RegisterAddresses()
	if len(addrs) != len(Registers()) {
		t.Fatalf("RegisterAddresses() has %d entries, want %d", len(addrs), len(Registers()))
	}
	if addrs[0] != RegDeviceID {
		t.Errorf("first address = 0x%02X, want 0x00", addrs[0])
	}
}

func TestSetOffsets(t *testing.T) {
	d, bus := newPlayback(
		i2ctest.IO{Addr: DefaultAddr, W: []byte{0x1E, 0x02}},
		i2ctest.IO{Addr: DefaultAddr, W: []byte{0x1F, 0xFE}},
		i2ctest.IO{Addr: DefaultAddr, W: []byte{0x20, 0x00}},
	)
	if err := d.SetOffsets(2, -2, 0); err != nil {
		t.Fatalf("SetOffsets() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("unplayed ops: %v", err)
	}
}

func TestOffsetsFor(t *testing.T) {
	g := StandardGravity
	tests := []struct {
		name    string
		mean    Vector
		x, y, z int8
	}{
		{"level", Vector{0, 0, g}, 0, 0, 0},
		{"x reads +0.0312g", Vector{0.0312 * g, 0, g}, -2, 0, 0},
		{"z reads 0.9688g", Vector{0, 0, 0.9688 * g}, 0, 0, 2},
		{"clamped", Vector{-3 * g, 0, g}, 127, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, z := OffsetsFor(tt.mean)
			if x != tt.x || y != tt.y || z != tt.z {
				t.Errorf("OffsetsFor(%v) = %d, %d, %d, want %d, %d, %d", tt.mean, x, y, z, tt.x, tt.y, tt.z)
			}
		})
	}
}
