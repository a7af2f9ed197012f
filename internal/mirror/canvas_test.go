package mirror

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/relabs-tech/etch_sketch/internal/display"
	"github.com/relabs-tech/etch_sketch/internal/sketch"
)

func TestApplyPlotAndClear(t *testing.T) {
	c := NewCanvas(240, display.Black)

	if err := c.Apply(sketch.Event{Kind: sketch.KindPlot, X: 10, Y: 20, Angle: 7, Radius: 0.5, Color: uint16(display.White)}); err != nil {
		t.Fatalf("Apply(plot) error = %v", err)
	}
	if got := display.RGB565Model.Convert(c.Snapshot().At(10, 20)); got != display.White {
		t.Errorf("pixel (10,20) = %v, want White", got)
	}

	if err := c.Apply(sketch.Event{Kind: sketch.KindClear, Color: uint16(display.Black)}); err != nil {
		t.Fatalf("Apply(clear) error = %v", err)
	}
	if got := display.RGB565Model.Convert(c.Snapshot().At(10, 20)); got != display.Black {
		t.Errorf("pixel (10,20) after clear = %v, want Black", got)
	}

	plots, clears, last := c.Stats()
	if plots != 1 || clears != 1 || last.Kind != sketch.KindClear {
		t.Errorf("Stats() = %d, %d, %+v", plots, clears, last)
	}
}

func TestApplyRejects(t *testing.T) {
	c := NewCanvas(240, display.Black)
	if err := c.Apply(sketch.Event{Kind: "erase"}); err == nil {
		t.Error("Apply() with unknown kind should fail")
	}
	if err := c.Apply(sketch.Event{Kind: sketch.KindPlot, X: 240, Y: 0}); err == nil {
		t.Error("Apply() outside the canvas should fail")
	}
	if plots, _, _ := c.Stats(); plots != 0 {
		t.Errorf("plots = %d after rejected events", plots)
	}
}

func TestWritePNG(t *testing.T) {
	c := NewCanvas(64, display.Black)
	if err := c.SetPixel(3, 3, display.PhosphorBright); err != nil {
		t.Fatal(err)
	}

	var plain bytes.Buffer
	if err := c.WritePNG(&plain, ""); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}
	img, err := png.Decode(&plain)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("bounds = %v, want 64x64", b)
	}

	var captioned bytes.Buffer
	if err := c.WritePNG(&captioned, c.Caption()); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}
	img, err = png.Decode(&captioned)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Dy(); got != 64+captionHeight {
		t.Errorf("captioned height = %d, want %d", got, 64+captionHeight)
	}
	if got := display.RGB565Model.Convert(img.At(3, 3)); got != display.PhosphorBright {
		t.Errorf("pixel (3,3) = %v, want PhosphorBright", got)
	}
}

func TestCaption(t *testing.T) {
	c := NewCanvas(240, display.Black)
	if got := c.Caption(); got != "Waiting..." {
		t.Errorf("Caption() = %q", got)
	}
	_ = c.Apply(sketch.Event{Kind: sketch.KindPlot, X: 1, Y: 1, Angle: 90, Radius: 0.25})
	if got := c.Caption(); !strings.HasPrefix(got, "A: 90 R:0.25") {
		t.Errorf("Caption() = %q", got)
	}
}
