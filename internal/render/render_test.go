package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/opera-tools/rastack/pkg/colormap"
	"github.com/opera-tools/rastack/pkg/raster"
)

func testGrid(t *testing.T) *raster.Grid {
	t.Helper()
	g, err := raster.NewGridFromBytes(raster.Uint8, 3, 2, []byte{
		0, 1, 2,
		2, 1, 0,
	})
	if err != nil {
		t.Fatalf("failed to build grid: %v", err)
	}
	return g
}

func decodePNG(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("expected valid PNG, got %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestRenderSliceNativeScale(t *testing.T) {
	r := NewRenderer()
	cm := colormap.SurfaceWater(0, 3, 0)

	data, err := r.RenderSlice(testGrid(t), cm, Options{})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	w, h := decodePNG(t, data)
	if w != 3 || h != 2 {
		t.Fatalf("expected 3x2 image, got %dx%d", w, h)
	}
}

func TestRenderSliceScaled(t *testing.T) {
	r := NewRenderer()
	cm := colormap.SurfaceWater(0, 3, 0)

	data, err := r.RenderSlice(testGrid(t), cm, Options{Scale: 4})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	w, h := decodePNG(t, data)
	if w != 12 || h != 8 {
		t.Fatalf("expected 12x8 image, got %dx%d", w, h)
	}
}

func TestRenderSliceWithLegend(t *testing.T) {
	r := NewRenderer()
	cm := colormap.SurfaceWater(0, 3, 0)

	data, err := r.RenderSlice(testGrid(t), cm, Options{Legend: true, Background: true})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	_, h := decodePNG(t, data)
	if h <= 2 {
		t.Fatalf("expected legend strip below image, got height %d", h)
	}
}

func TestRenderSliceRejectsFloat(t *testing.T) {
	r := NewRenderer()
	cm := colormap.SurfaceWater(0, 3, 0)

	_, err := r.RenderSlice(raster.NewGrid(raster.Float32, 2, 2), cm, Options{})
	if err == nil {
		t.Fatal("expected error for float grid")
	}
}
