package raster_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/opera-tools/rastack/pkg/raster"
	"github.com/opera-tools/rastack/pkg/raster/rastertest"
)

func TestMergeEmptyInput(t *testing.T) {
	_, err := raster.Merge(nil, raster.MergeOptions{})
	if !errors.Is(err, raster.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestMergeSingletonPassThrough(t *testing.T) {
	f := rastertest.Frame(rastertest.FrameOptions{
		Width: 4, Height: 3, Fill: 7,
		OriginX: 500000, OriginY: 4000000, Res: 30,
	})
	m, err := raster.Merge([]*raster.Frame{f}, raster.MergeOptions{})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if m.Bounds != f.Bounds {
		t.Fatalf("expected bounds %+v, got %+v", f.Bounds, m.Bounds)
	}
	if m.Grid.Width() != 4 || m.Grid.Height() != 3 {
		t.Fatalf("expected 4x3 grid, got %dx%d", m.Grid.Width(), m.Grid.Height())
	}
	if !bytes.Equal(m.Grid.Bytes(), f.Grid.Bytes()) {
		t.Fatalf("expected pixel pass-through on singleton merge")
	}
}

func TestMergeAdjacentEqualsConcatenation(t *testing.T) {
	// Three frames covering distinct non-overlapping thirds of one row of
	// tiles merge into a single seamless mosaic.
	const res = 30
	var frames []*raster.Frame
	for i := 0; i < 3; i++ {
		frames = append(frames, rastertest.Frame(rastertest.FrameOptions{
			Width: 100, Height: 100, Fill: int64(i + 1),
			OriginX: 500000 + float64(i*100*res), OriginY: 4000000, Res: res,
		}))
	}
	m, err := raster.Merge(frames, raster.MergeOptions{})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if m.Grid.Width() != 300 || m.Grid.Height() != 100 {
		t.Fatalf("expected 300x100 mosaic, got %dx%d", m.Grid.Width(), m.Grid.Height())
	}
	for i := 0; i < 3; i++ {
		if got := m.Grid.Value(50, i*100+50); got != int64(i+1) {
			t.Fatalf("expected value %d in third %d, got %d", i+1, i, got)
		}
	}
}

func TestMergeLastWriteWins(t *testing.T) {
	const res = 30
	a := rastertest.Frame(rastertest.FrameOptions{
		Width: 100, Height: 10, Fill: 1,
		OriginX: 0, OriginY: 300, Res: res,
	})
	// B covers columns 50-149 at the same rows.
	b := rastertest.Frame(rastertest.FrameOptions{
		Width: 100, Height: 10, Fill: 2,
		OriginX: 50 * res, OriginY: 300, Res: res,
	})

	ab, err := raster.Merge([]*raster.Frame{a, b}, raster.MergeOptions{})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if ab.Grid.Width() != 150 {
		t.Fatalf("expected 150 columns, got %d", ab.Grid.Width())
	}
	for _, col := range []int{50, 75, 99} {
		if got := ab.Grid.Value(5, col); got != 2 {
			t.Fatalf("expected later frame to win at column %d, got %d", col, got)
		}
	}
	if got := ab.Grid.Value(5, 49); got != 1 {
		t.Fatalf("expected frame A outside overlap, got %d", got)
	}

	// Determinism: the same call yields bit-identical output.
	ab2, err := raster.Merge([]*raster.Frame{a, b}, raster.MergeOptions{})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if !bytes.Equal(ab.Grid.Bytes(), ab2.Grid.Bytes()) {
		t.Fatalf("expected deterministic merge output")
	}

	// Reversed order differs exactly in the overlap region.
	ba, err := raster.Merge([]*raster.Frame{b, a}, raster.MergeOptions{})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	for _, col := range []int{50, 75, 99} {
		if got := ba.Grid.Value(5, col); got != 1 {
			t.Fatalf("expected frame A to win at column %d after reorder, got %d", col, got)
		}
	}
	if got := ba.Grid.Value(5, 100); got != 2 {
		t.Fatalf("expected frame B outside overlap, got %d", got)
	}
}

func TestMergePreferValidKeepsEarlierObservation(t *testing.T) {
	const res = 30
	noData := float64(255)
	a := rastertest.Frame(rastertest.FrameOptions{
		Width: 4, Height: 1, Fill: 1,
		OriginX: 0, OriginY: 30, Res: res, NoData: &noData,
	})
	b := rastertest.Frame(rastertest.FrameOptions{
		Width: 4, Height: 1, Pix: []byte{255, 2, 255, 2},
		OriginX: 0, OriginY: 30, Res: res, NoData: &noData,
	})

	m, err := raster.Merge([]*raster.Frame{a, b}, raster.MergeOptions{Strategy: raster.PreferValid})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	want := []int64{1, 2, 1, 2}
	for c, w := range want {
		if got := m.Grid.Value(0, c); got != w {
			t.Fatalf("column %d: expected %d, got %d", c, w, got)
		}
	}
}

func TestMergePreconditions(t *testing.T) {
	base := rastertest.FrameOptions{Width: 2, Height: 2, OriginX: 0, OriginY: 60, Res: 30}

	t.Run("crsMismatch", func(t *testing.T) {
		a := rastertest.Frame(base)
		other := base
		other.CRS = "EPSG:32612"
		other.URI = "tile-b.tif"
		b := rastertest.Frame(other)
		_, err := raster.Merge([]*raster.Frame{a, b}, raster.MergeOptions{})
		var cerr *raster.CRSMismatchError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected CRSMismatchError, got %v", err)
		}
		if cerr.Where != "tile-b.tif" {
			t.Fatalf("expected offending URI in error, got %q", cerr.Where)
		}
	})

	t.Run("resolutionMismatch", func(t *testing.T) {
		a := rastertest.Frame(base)
		other := base
		other.Res = 10
		b := rastertest.Frame(other)
		_, err := raster.Merge([]*raster.Frame{a, b}, raster.MergeOptions{})
		var rerr *raster.ResolutionMismatchError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected ResolutionMismatchError, got %v", err)
		}
	})
}

func TestMergeUncoveredPixelsHoldNoData(t *testing.T) {
	// Two diagonal tiles leave the off-diagonal corners uncovered.
	const res = 30
	noData := float64(255)
	a := rastertest.Frame(rastertest.FrameOptions{
		Width: 2, Height: 2, Fill: 1,
		OriginX: 0, OriginY: 120, Res: res, NoData: &noData,
	})
	b := rastertest.Frame(rastertest.FrameOptions{
		Width: 2, Height: 2, Fill: 2,
		OriginX: 2 * res, OriginY: 60, Res: res, NoData: &noData,
	})
	m, err := raster.Merge([]*raster.Frame{a, b}, raster.MergeOptions{})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if m.Grid.Width() != 4 || m.Grid.Height() != 4 {
		t.Fatalf("expected 4x4 mosaic, got %dx%d", m.Grid.Width(), m.Grid.Height())
	}
	if got := m.Grid.Value(0, 3); got != 255 {
		t.Fatalf("expected no-data fill in uncovered corner, got %d", got)
	}
	if got := m.Grid.Value(0, 0); got != 1 {
		t.Fatalf("expected tile A in upper-left, got %d", got)
	}
	if got := m.Grid.Value(3, 3); got != 2 {
		t.Fatalf("expected tile B in lower-right, got %d", got)
	}
}
