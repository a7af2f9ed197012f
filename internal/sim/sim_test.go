package sim

import (
	"math"
	"testing"
	"time"
)

type fakeTime struct{ t time.Time }

func (f *fakeTime) now() time.Time { return f.t }

func newFakeClock() (*Clock, *fakeTime) {
	ft := &fakeTime{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	return NewClockFunc(ft.now), ft
}

func TestAngleTurnsAndWraps(t *testing.T) {
	c, ft := newFakeClock()
	a := NewAngle(c, 90)

	tests := []struct {
		after time.Duration
		want  int
	}{
		{0, 0},
		{time.Second, 90},
		{3500 * time.Millisecond, 315},
		{4 * time.Second, 0},
		{5 * time.Second, 90},
	}
	for _, tt := range tests {
		ft.t = c.start.Add(tt.after)
		if got := a.CurrentAngle(); got != tt.want {
			t.Errorf("after %v CurrentAngle() = %d, want %d", tt.after, got, tt.want)
		}
	}
}

func TestAngleReverse(t *testing.T) {
	c, ft := newFakeClock()
	a := NewAngle(c, -90)
	ft.t = c.start.Add(time.Second)
	if got := a.CurrentAngle(); got != 270 {
		t.Errorf("CurrentAngle() = %d, want 270", got)
	}
}

func TestRadiusInRange(t *testing.T) {
	c, ft := newFakeClock()
	r := NewRadius(c)
	for i := 0; i < 100; i++ {
		ft.t = c.start.Add(time.Duration(i) * 250 * time.Millisecond)
		v, err := r.CurrentRadius()
		if err != nil {
			t.Fatal(err)
		}
		if v < 0 || v > 1 {
			t.Fatalf("CurrentRadius() = %v outside [0, 1]", v)
		}
	}
}

func TestAccelerometerFlips(t *testing.T) {
	c, ft := newFakeClock()
	a := NewAccelerometer(c, 10*time.Second, time.Second)

	ft.t = c.start.Add(2 * time.Second)
	v, err := a.ReadAcceleration()
	if err != nil {
		t.Fatal(err)
	}
	if v.Z < 9 {
		t.Errorf("flat Z = %v, want about +9.8", v.Z)
	}

	ft.t = c.start.Add(9500 * time.Millisecond)
	v, _ = a.ReadAcceleration()
	if v.Z > -9 {
		t.Errorf("flipped Z = %v, want about -9.8", v.Z)
	}

	if n := math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z); math.Abs(n-9.80665) > 1e-9 {
		t.Errorf("|g| = %v, want 9.80665", n)
	}
}

func TestAccelerometerNeverFlipsWhenDisabled(t *testing.T) {
	c, ft := newFakeClock()
	a := NewAccelerometer(c, 0, 0)
	for i := 0; i < 50; i++ {
		ft.t = c.start.Add(time.Duration(i) * time.Second)
		if v, _ := a.ReadAcceleration(); v.Z < 0 {
			t.Fatalf("Z = %v at %ds with flipping disabled", v.Z, i)
		}
	}
}
