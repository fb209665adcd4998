package raster

import (
	"math"
)

// MergeStrategy selects how pixel overlaps between input frames are
// resolved.
type MergeStrategy int

const (
	// LastWins overwrites overlap pixels with the last frame supplied in
	// merge order. This matches the common raster-merge convention and is
	// the default.
	LastWins MergeStrategy = iota
	// PreferValid also writes in merge order, but a frame's pixel is
	// skipped when it equals that frame's no-data value, so an earlier
	// valid observation survives a later masked one.
	PreferValid
)

// MergeOptions configures a merge. The zero value selects LastWins.
type MergeOptions struct {
	Strategy MergeStrategy
}

// Mosaic is the result of merging one or more frames that share a CRS and
// resolution. It covers the union of the input bounds and carries no tag.
type Mosaic struct {
	Grid   *Grid
	Res    Resolution
	Bounds Bounds
	CRS    string
	NoData *float64
}

// resolutionTolerance absorbs float noise when comparing per-axis
// resolutions of frames from the same product grid.
const resolutionTolerance = 1e-6

func sameResolution(a, b Resolution) bool {
	return math.Abs(a.X-b.X) <= resolutionTolerance && math.Abs(a.Y-b.Y) <= resolutionTolerance
}

// Merge combines frames with identical CRS, resolution, and element type
// into one mosaic covering the union of their bounds. Frames are copied in
// the given order; where frames overlap, later frames win (see
// MergeStrategy). A single-frame input degenerates to a copy.
func Merge(frames []*Frame, opts MergeOptions) (*Mosaic, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyInput
	}

	ref := frames[0]
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	union := ref.Bounds
	for _, f := range frames[1:] {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if f.CRS != ref.CRS {
			return nil, &CRSMismatchError{Want: ref.CRS, Got: f.CRS, Where: f.URI}
		}
		if !sameResolution(f.Res, ref.Res) {
			return nil, &ResolutionMismatchError{Want: ref.Res, Got: f.Res, Where: f.URI}
		}
		if f.Grid.DType() != ref.Grid.DType() {
			return nil, &DTypeMismatchError{Want: ref.Grid.DType(), Got: f.Grid.DType(), Where: f.URI}
		}
		union = union.Union(f.Bounds)
	}

	outW := int(math.Round(union.Width() / ref.Res.X))
	outH := int(math.Round(union.Height() / ref.Res.Y))
	out := NewGrid(ref.Grid.DType(), outW, outH)

	// Uncovered output pixels hold the first declared no-data value, or
	// zero when no input declares one.
	noData := mergedNoData(frames)
	if noData != nil && *noData != 0 {
		fillGrid(out, *noData)
	}

	es := out.DType().Size()
	for _, f := range frames {
		// Pixel offset of the frame's upper-left corner within the
		// output grid, from the affine relationship between its bounds
		// and the union origin.
		col0 := int(math.Round((f.Bounds.MinX - union.MinX) / ref.Res.X))
		row0 := int(math.Round((union.MaxY - f.Bounds.MaxY) / ref.Res.Y))
		fw := f.Grid.Width()
		fh := f.Grid.Height()

		for r := 0; r < fh; r++ {
			or := row0 + r
			if or < 0 || or >= outH {
				continue
			}
			src := f.Grid.Bytes()[r*fw*es : (r+1)*fw*es]
			dstOff := (or*outW + col0) * es
			switch {
			case opts.Strategy == PreferValid && f.NoData != nil:
				copyRowPreferValid(out, f, src, or, col0)
			default:
				copy(out.Bytes()[dstOff:dstOff+fw*es], src)
			}
		}
	}

	return &Mosaic{
		Grid:   out,
		Res:    ref.Res,
		Bounds: union,
		CRS:    ref.CRS,
		NoData: noData,
	}, nil
}

// copyRowPreferValid writes one source row element-wise, skipping pixels
// equal to the frame's no-data value.
func copyRowPreferValid(out *Grid, f *Frame, src []byte, outRow, col0 int) {
	es := out.DType().Size()
	fw := f.Grid.Width()
	nd := *f.NoData
	for c := 0; c < fw; c++ {
		elem := src[c*es : (c+1)*es]
		if sampleBytes(out.DType(), elem) == nd {
			continue
		}
		dstOff := (outRow*out.Width() + col0 + c) * es
		copy(out.Bytes()[dstOff:dstOff+es], elem)
	}
}

// mergedNoData returns the first no-data value declared by any input.
func mergedNoData(frames []*Frame) *float64 {
	for _, f := range frames {
		if f.NoData != nil {
			v := *f.NoData
			return &v
		}
	}
	return nil
}

func fillGrid(g *Grid, v float64) {
	if g.DType() == Float32 {
		n := g.Width() * g.Height()
		for i := 0; i < n; i++ {
			putFloat32(g.Bytes()[i*4:], float32(v))
		}
		return
	}
	n := g.Width() * g.Height()
	iv := int64(v)
	for i := 0; i < n; i++ {
		g.setValueAt(i, iv)
	}
}

// FrameFromMosaic re-tags a mosaic as a frame so it can participate in
// stacking.
func FrameFromMosaic(m *Mosaic, tag string) *Frame {
	return &Frame{
		Grid:   m.Grid,
		Res:    m.Res,
		Bounds: m.Bounds,
		CRS:    m.CRS,
		Tag:    tag,
		NoData: m.NoData,
	}
}
