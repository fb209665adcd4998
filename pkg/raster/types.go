// Package raster implements the mosaic, stacking, and categorical
// relabeling kernel for tiled satellite rasters. Frames produced by the
// reader are merged into mosaics, stacked along a tag axis (time or band),
// and relabeled into a dense code range for discrete colormap rendering.
package raster

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType identifies the element type of a pixel grid.
type DType int

const (
	Uint8 DType = iota
	Int16
	Uint16
	Int32
	Float32
)

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Float32:
		return 4
	}
	return 0
}

func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	}
	return fmt.Sprintf("dtype(%d)", int(d))
}

// Integer reports whether the element type is a fixed-width integer.
func (d DType) Integer() bool {
	return d != Float32
}

// DTypeFromString parses the names produced by DType.String.
func DTypeFromString(s string) (DType, error) {
	switch s {
	case "uint8":
		return Uint8, nil
	case "int16":
		return Int16, nil
	case "uint16":
		return Uint16, nil
	case "int32":
		return Int32, nil
	case "float32":
		return Float32, nil
	}
	return 0, fmt.Errorf("unknown dtype: %q", s)
}

// Resolution is the per-axis ground distance covered by one pixel. Both
// magnitudes are positive; the vertical axis increases opposite to the row
// index (row 0 is the northern edge).
type Resolution struct {
	X float64
	Y float64
}

// Bounds is an axis-aligned rectangle in the frame's coordinate reference
// system.
type Bounds struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Width returns the horizontal extent in ground units.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent in ground units.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Union returns the smallest bounds covering both rectangles.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Grid is a dense row-major pixel grid. Raw storage is little-endian
// regardless of the source file's byte order, so overlap copies during
// merging can move whole rows of bytes without looking at the element type.
type Grid struct {
	dtype  DType
	width  int
	height int
	data   []byte
}

// NewGrid allocates a zero-filled grid.
func NewGrid(dtype DType, width, height int) *Grid {
	return &Grid{
		dtype:  dtype,
		width:  width,
		height: height,
		data:   make([]byte, width*height*dtype.Size()),
	}
}

// NewGridFromBytes wraps raw little-endian pixel data. The buffer is owned
// by the grid after the call.
func NewGridFromBytes(dtype DType, width, height int, data []byte) (*Grid, error) {
	if want := width * height * dtype.Size(); len(data) != want {
		return nil, fmt.Errorf("grid data size mismatch: got %d bytes, expected %d", len(data), want)
	}
	return &Grid{dtype: dtype, width: width, height: height, data: data}, nil
}

// DType returns the element type.
func (g *Grid) DType() DType { return g.dtype }

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Bytes returns the raw little-endian pixel buffer.
func (g *Grid) Bytes() []byte { return g.data }

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	data := make([]byte, len(g.data))
	copy(data, g.data)
	return &Grid{dtype: g.dtype, width: g.width, height: g.height, data: data}
}

// Sample returns the pixel at (row, col) widened to float64.
func (g *Grid) Sample(row, col int) float64 {
	if g.dtype == Float32 {
		off := (row*g.width + col) * 4
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(g.data[off:])))
	}
	return float64(g.valueAt(row*g.width + col))
}

// valueAt reads element i of an integer-typed grid.
func (g *Grid) valueAt(i int) int64 {
	switch g.dtype {
	case Uint8:
		return int64(g.data[i])
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(g.data[i*2:])))
	case Uint16:
		return int64(binary.LittleEndian.Uint16(g.data[i*2:]))
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(g.data[i*4:])))
	}
	panic("raster: valueAt on non-integer grid")
}

// setValueAt writes element i of an integer-typed grid.
func (g *Grid) setValueAt(i int, v int64) {
	switch g.dtype {
	case Uint8:
		g.data[i] = byte(v)
	case Int16, Uint16:
		binary.LittleEndian.PutUint16(g.data[i*2:], uint16(v))
	case Int32:
		binary.LittleEndian.PutUint32(g.data[i*4:], uint32(v))
	default:
		panic("raster: setValueAt on non-integer grid")
	}
}

// SetValue writes an integer pixel at (row, col). Intended for building
// fixtures and small grids; bulk writers should fill Bytes directly.
func (g *Grid) SetValue(row, col int, v int64) {
	g.setValueAt(row*g.width+col, v)
}

// Value reads an integer pixel at (row, col).
func (g *Grid) Value(row, col int) int64 {
	return g.valueAt(row*g.width + col)
}

// sampleBytes reads one little-endian element widened to float64.
func sampleBytes(d DType, b []byte) float64 {
	switch d {
	case Uint8:
		return float64(b[0])
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(b))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return 0
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

// Frame is one georeferenced raster read from a single source file,
// together with the coordinate label used later for stacking. Frames are
// treated as read-only once decoded.
type Frame struct {
	Grid   *Grid
	Res    Resolution
	Bounds Bounds
	CRS    string
	Tag    string
	// NoData is the sentinel value declared by the source file, when any.
	NoData *float64
	// URI records provenance for error context.
	URI string
}

// gridTolerance is the one-pixel rounding slack allowed between the pixel
// grid dimensions and the (bounds, resolution) pair.
const gridTolerance = 1.0

// Validate checks the frame invariants: positive resolution, ordered
// bounds, and grid dimensions consistent with bounds and resolution.
func (f *Frame) Validate() error {
	if f.Grid == nil {
		return fmt.Errorf("frame %s: nil pixel grid", f.URI)
	}
	if f.Res.X <= 0 || f.Res.Y <= 0 {
		return fmt.Errorf("frame %s: non-positive resolution (%g, %g)", f.URI, f.Res.X, f.Res.Y)
	}
	if f.Bounds.MaxX <= f.Bounds.MinX || f.Bounds.MaxY <= f.Bounds.MinY {
		return fmt.Errorf("frame %s: degenerate bounds %+v", f.URI, f.Bounds)
	}
	wantW := f.Bounds.Width() / f.Res.X
	wantH := f.Bounds.Height() / f.Res.Y
	if math.Abs(wantW-float64(f.Grid.Width())) > gridTolerance {
		return fmt.Errorf("frame %s: width %d inconsistent with bounds/resolution (expected %.2f)", f.URI, f.Grid.Width(), wantW)
	}
	if math.Abs(wantH-float64(f.Grid.Height())) > gridTolerance {
		return fmt.Errorf("frame %s: height %d inconsistent with bounds/resolution (expected %.2f)", f.URI, f.Grid.Height(), wantH)
	}
	return nil
}
