package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/etch_sketch/internal/accel"
	"github.com/relabs-tech/etch_sketch/internal/config"
	"github.com/relabs-tech/etch_sketch/internal/display"
	"github.com/relabs-tech/etch_sketch/internal/sketch"
)

type recordObserver struct{ kinds []string }

func (r *recordObserver) Observe(e sketch.Event) { r.kinds = append(r.kinds, e.Kind) }

func TestFanout(t *testing.T) {
	a, b := &recordObserver{}, &recordObserver{}
	f := fanout{a, b}
	f.Observe(sketch.Event{Kind: sketch.KindClear})
	f.Observe(sketch.Event{Kind: sketch.KindPlot})
	for _, r := range []*recordObserver{a, b} {
		if strings.Join(r.kinds, ",") != "clear,plot" {
			t.Errorf("observer saw %v", r.kinds)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 30, 45, 123_000_000, time.UTC)
	plot := formatEvent(sketch.Event{Kind: sketch.KindPlot, X: 239, Y: 120, Angle: 0, Radius: 1, Color: 0xFFFF, Time: ts})
	if want := "12:30:45.123 [PLOT ] angle=  0 radius=1.00 -> (239,120) color=0xFFFF"; plot != want {
		t.Errorf("plot line = %q, want %q", plot, want)
	}
	cleared := formatEvent(sketch.Event{Kind: sketch.KindClear, AccelZ: -9.81, Time: ts})
	if !strings.Contains(cleared, "[CLEAR] z= -9.81") {
		t.Errorf("clear line = %q", cleared)
	}
}

// fakeBus acknowledges reads only at the listed addresses.
type fakeBus struct {
	present map[uint16]bool
	probed  int
}

func (b *fakeBus) String() string                  { return "fakeBus" }
func (b *fakeBus) SetSpeed(physic.Frequency) error { return nil }

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	b.probed++
	if b.present[addr] {
		return nil
	}
	return errors.New("nack")
}

func TestScanBus(t *testing.T) {
	bus := &fakeBus{present: map[uint16]bool{0x03: true, 0x48: true, 0x53: true, 0x78: true}}
	got := ScanBus(bus)
	if len(got) != 2 || got[0] != 0x48 || got[1] != 0x53 {
		t.Errorf("ScanBus() = %v, want [0x48 0x53]", got)
	}
	if bus.probed != 0x77-0x08+1 {
		t.Errorf("probed %d addresses, want %d", bus.probed, 0x77-0x08+1)
	}
}

func TestWriteScan(t *testing.T) {
	var out bytes.Buffer
	writeScan(&out, []uint16{0x53, 0x60}, config.Default())
	got := out.String()
	for _, want := range []string{"0x53  ADXL345", "0x60  unknown", "missing: ADC_I2C_ADDR 0x48"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q does not contain %q", got, want)
		}
	}
}

// fakeDevice is an in-memory register file.
type fakeDevice struct {
	regs  map[byte]byte
	inits int
	err   error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{regs: map[byte]byte{0x00: 0xE5, 0x2D: 0x08}}
}

func (d *fakeDevice) ReadRegister(reg byte) (byte, error) {
	if d.err != nil {
		return 0, d.err
	}
	return d.regs[reg], nil
}

func (d *fakeDevice) WriteRegister(reg, value byte) error {
	if d.err != nil {
		return d.err
	}
	d.regs[reg] = value
	return nil
}

func (d *fakeDevice) ReadAcceleration() (accel.Vector, error) {
	return accel.Vector{Z: 9.8}, d.err
}

func (d *fakeDevice) Init() error {
	d.inits++
	return d.err
}

func TestRegisterDebugHandle(t *testing.T) {
	dev := newFakeDevice()
	d := newRegisterDebug(dev)
	d.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }

	tests := []struct {
		name     string
		cmd      RegisterCommand
		wantType string
		check    func(t *testing.T, r RegisterResponse)
	}{
		{"read id", RegisterCommand{Action: "read", Address: "0x00"}, "register_data", func(t *testing.T, r RegisterResponse) {
			if r.Value != "0xE5" {
				t.Errorf("value = %q, want 0xE5", r.Value)
			}
		}},
		{"write data format", RegisterCommand{Action: "write", Address: "0x31", Value: "0x0B"}, "register_data", func(t *testing.T, r RegisterResponse) {
			if dev.regs[0x31] != 0x0B {
				t.Errorf("register 0x31 = 0x%02X, want 0x0B", dev.regs[0x31])
			}
		}},
		{"write read-only", RegisterCommand{Action: "write", Address: "0x32", Value: "0x01"}, "error", nil},
		{"bad address", RegisterCommand{Action: "read", Address: "53"}, "error", nil},
		{"bad value", RegisterCommand{Action: "write", Address: "0x2D", Value: "on"}, "error", nil},
		{"read all", RegisterCommand{Action: "read_all"}, "register_data", func(t *testing.T, r RegisterResponse) {
			if len(r.Registers) != len(accel.RegisterAddresses()) {
				t.Errorf("got %d registers, want %d", len(r.Registers), len(accel.RegisterAddresses()))
			}
			if r.Registers["0x2D"] != "0x08" {
				t.Errorf("POWER_CTL = %q", r.Registers["0x2D"])
			}
		}},
		{"init", RegisterCommand{Action: "init"}, "status", func(t *testing.T, r RegisterResponse) {
			if dev.inits != 1 {
				t.Errorf("Init called %d times", dev.inits)
			}
		}},
		{"export", RegisterCommand{Action: "export_config"}, "export_config", func(t *testing.T, r RegisterResponse) {
			if r.Filename != "adxl345_20260203_040506_registers.json" {
				t.Errorf("filename = %q", r.Filename)
			}
			var f RegisterConfigFile
			if err := json.Unmarshal([]byte(r.Config), &f); err != nil {
				t.Fatal(err)
			}
			if f.Version != 1 || f.Registers["0x00"] != "0xE5" {
				t.Errorf("export = %+v", f)
			}
		}},
		{"map", RegisterCommand{Action: "get_map"}, "register_map", func(t *testing.T, r RegisterResponse) {
			if len(r.RegisterMap) == 0 {
				t.Error("empty register map")
			}
		}},
		{"missing action", RegisterCommand{}, "error", nil},
		{"unknown action", RegisterCommand{Action: "set_spi_speed"}, "error", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := d.handle(tt.cmd)
			if r.Type != tt.wantType {
				t.Fatalf("response type = %q (%s), want %q", r.Type, r.Message, tt.wantType)
			}
			if tt.check != nil {
				tt.check(t, r)
			}
		})
	}
}

func TestRegisterDebugBusError(t *testing.T) {
	dev := newFakeDevice()
	dev.err = errors.New("nack")
	d := newRegisterDebug(dev)
	if r := d.handle(RegisterCommand{Action: "read_all"}); r.Type != "error" || !strings.Contains(r.Message, "nack") {
		t.Errorf("response = %+v", r)
	}
}

func wsURL(s *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + path
}

func TestRegisterDebugWebSocket(t *testing.T) {
	ts := httptest.NewServer(newRegisterDebug(newFakeDevice()).routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first RegisterResponse
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Type != "register_map" || first.Device != "adxl345" {
		t.Errorf("first message = %+v", first)
	}

	if err := conn.WriteJSON(RegisterCommand{Action: "read", Address: "0x00"}); err != nil {
		t.Fatal(err)
	}
	var resp RegisterResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Value != "0xE5" {
		t.Errorf("read response = %+v", resp)
	}
}

func TestRegisterDebugAccelAPI(t *testing.T) {
	ts := httptest.NewServer(newRegisterDebug(newFakeDevice()).routes())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/accel")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var v accel.Vector
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Z != 9.8 {
		t.Errorf("Z = %v, want 9.8", v.Z)
	}
}

func TestWebServerState(t *testing.T) {
	s := newWebServer(240, display.Black)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("state before data = %d, want 503", res.StatusCode)
	}

	s.apply(sketch.Event{Kind: sketch.KindPlot, X: 10, Y: 10, Angle: 45, Color: uint16(display.White)})
	s.apply(sketch.Event{Kind: sketch.KindPlot, X: 500, Y: 10})

	res, err = http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var st stateResponse
	if err := json.NewDecoder(res.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Plots != 1 || st.Last.Angle != 45 {
		t.Errorf("state = %+v", st)
	}
}

func TestWebServerCanvasPNG(t *testing.T) {
	s := newWebServer(240, display.Black)
	s.apply(sketch.Event{Kind: sketch.KindPlot, X: 100, Y: 50, Color: uint16(display.White)})
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/canvas.png?caption=0")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := png.Decode(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 240 || b.Dy() != 240 {
		t.Errorf("bounds = %v", b)
	}
	if got := display.RGB565Model.Convert(img.At(100, 50)); got != display.White {
		t.Errorf("pixel = %v, want White", got)
	}
}

func TestWebServerEvents(t *testing.T) {
	s := newWebServer(240, display.Black)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/events"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		s.hub.mu.Lock()
		n := len(s.hub.clients)
		s.hub.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.apply(sketch.Event{Kind: sketch.KindClear, AccelZ: -9.7})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var e sketch.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatal(err)
	}
	if e.Kind != sketch.KindClear || e.AccelZ != -9.7 {
		t.Errorf("event = %+v", e)
	}
}

func TestRenderStatus(t *testing.T) {
	lit := func(pix []byte) int {
		n := 0
		for _, b := range pix {
			for ; b != 0; b &= b - 1 {
				n++
			}
		}
		return n
	}

	waiting := renderStatus(statusData{})
	running := renderStatus(statusData{last: sketch.Event{Angle: 123, Radius: 0.5, AccelZ: 9.8}, plots: 10, clears: 2})
	if lit(waiting.Pix) == 0 || lit(running.Pix) == 0 {
		t.Fatal("status image is blank")
	}
	if bytes.Equal(waiting.Pix, running.Pix) {
		t.Error("waiting and running screens are identical")
	}
	if b := running.Bounds(); b.Dx() != 128 || b.Dy() != 64 {
		t.Errorf("bounds = %v, want 128x64", b)
	}
}

func TestRemapBus(t *testing.T) {
	inner := &fakeBus{present: map[uint16]bool{0x3D: true, 0x53: true}}
	bus := &remapBus{Bus: inner, from: ssd1306Addr, to: 0x3D}
	if err := bus.Tx(ssd1306Addr, []byte{0x00}, nil); err != nil {
		t.Errorf("Tx(0x3C) not redirected to 0x3D: %v", err)
	}
	if err := bus.Tx(0x53, nil, make([]byte, 1)); err != nil {
		t.Errorf("Tx(0x53) error = %v", err)
	}
	if err := bus.Tx(0x3E, nil, nil); err == nil {
		t.Error("Tx(0x3E) should pass through and fail")
	}
	if inner.probed != 3 {
		t.Errorf("inner bus saw %d transactions, want 3", inner.probed)
	}
}
