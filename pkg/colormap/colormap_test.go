package colormap

import (
	"image/color"
	"testing"
)

func TestViridisEndpoints(t *testing.T) {
	t.Parallel()

	c0, ok := Viridis.At(0).(color.RGBA)
	if !ok {
		t.Fatalf("expected color.RGBA at t=0")
	}
	if c0 != (color.RGBA{R: 68, G: 1, B: 84, A: 255}) {
		t.Fatalf("unexpected Viridis.At(0): %#v", c0)
	}

	c1, ok := Viridis.At(1).(color.RGBA)
	if !ok {
		t.Fatalf("expected color.RGBA at t=1")
	}
	if c1 != (color.RGBA{R: 253, G: 231, B: 37, A: 255}) {
		t.Fatalf("unexpected Viridis.At(1): %#v", c1)
	}
}

func TestCategoricalWrapsAround(t *testing.T) {
	t.Parallel()

	if Categorical.AtIndex(0) != Categorical.AtIndex(20) {
		t.Fatalf("expected AtIndex to wrap at table length")
	}
}

func TestDiscreteTransparentValue(t *testing.T) {
	t.Parallel()

	d := NewDiscrete(Categorical, 0, 4, 0)
	if got := d.Color(0); got.A != 0 {
		t.Fatalf("expected transparent value to carry zero alpha, got %#v", got)
	}
	if got := d.Color(2); got.A != 255 {
		t.Fatalf("expected opaque color for category 2, got %#v", got)
	}
	if got := d.Color(99); got.A != 0 {
		t.Fatalf("expected out-of-table value to be transparent, got %#v", got)
	}
}

func TestDiscreteOverrides(t *testing.T) {
	t.Parallel()

	d := NewDiscrete(Categorical, 1, 3, 1)
	d.SetColor(2, color.RGBA{10, 20, 30, 255})
	d.SetLabel(2, "open water")
	if got := d.Color(2); got != (color.RGBA{10, 20, 30, 255}) {
		t.Fatalf("unexpected override color: %#v", got)
	}
	if got := d.Label(2); got != "open water" {
		t.Fatalf("unexpected label: %q", got)
	}
	// Out-of-range overrides are ignored.
	d.SetColor(9, color.RGBA{1, 1, 1, 255})
	if got := d.Color(9); got.A != 0 {
		t.Fatalf("expected out-of-range override to be dropped")
	}
}

func TestSurfaceWaterPalette(t *testing.T) {
	t.Parallel()

	d := SurfaceWater(0, 6, 0)
	if d.Len() != 6 {
		t.Fatalf("expected 6 categories, got %d", d.Len())
	}
	if got := d.Color(1); got != (color.RGBA{0, 70, 220, 255}) {
		t.Fatalf("unexpected open water color: %#v", got)
	}
	if got := d.Label(2); got != "Partial surface water" {
		t.Fatalf("unexpected label: %q", got)
	}
}
