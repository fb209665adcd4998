// Package rastertest builds small in-memory GeoTIFF fixtures and frames
// for tests.
package rastertest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/opera-tools/rastack/pkg/raster"
)

// TIFFOptions describes a single-band uint8 GeoTIFF fixture.
type TIFFOptions struct {
	Width   int
	Height  int
	Pix     []byte // row-major, len Width*Height; nil means zeros
	OriginX float64
	OriginY float64 // upper-left corner
	ResX    float64
	ResY    float64
	EPSG    uint16
	NoData  *float64
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value uint32
}

const (
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

// GeoTIFF encodes a minimal little-endian, single-strip, uncompressed
// GeoTIFF carrying pixel scale, tiepoint, geokey directory, and GDAL
// no-data tags.
func GeoTIFF(opts TIFFOptions) []byte {
	pix := opts.Pix
	if pix == nil {
		pix = make([]byte, opts.Width*opts.Height)
	}
	if len(pix) != opts.Width*opts.Height {
		panic(fmt.Sprintf("rastertest: pix length %d, expected %d", len(pix), opts.Width*opts.Height))
	}

	var buf bytes.Buffer
	le := binary.LittleEndian

	// Header: byte order, magic, IFD offset (after pixel data).
	pixOffset := uint32(8)
	ifdOffset := pixOffset + uint32(len(pix))
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(42))
	binary.Write(&buf, le, ifdOffset)
	buf.Write(pix)

	// Out-of-line payloads follow the IFD.
	scale := []float64{opts.ResX, opts.ResY, 0}
	tiepoint := []float64{0, 0, 0, opts.OriginX, opts.OriginY, 0}
	// Geokey header plus one entry resolving the projected CRS.
	geokeys := []uint16{1, 1, 0, 1, 3072, 0, 1, opts.EPSG}
	var noData []byte
	if opts.NoData != nil {
		noData = append([]byte(fmt.Sprintf("%g", *opts.NoData)), 0)
	}

	entries := []ifdEntry{
		{256, typeLong, 1, uint32(opts.Width)},
		{257, typeLong, 1, uint32(opts.Height)},
		{258, typeShort, 1, 8},
		{259, typeShort, 1, 1},
		{262, typeShort, 1, 1},
		{273, typeLong, 1, pixOffset},
		{277, typeShort, 1, 1},
		{278, typeLong, 1, uint32(opts.Height)},
		{279, typeLong, 1, uint32(len(pix))},
		{339, typeShort, 1, 1},
	}

	// Offsets of the out-of-line payloads, laid out after the IFD.
	nEntries := len(entries) + 3
	if noData != nil {
		nEntries++
	}
	payloadOffset := ifdOffset + 2 + uint32(nEntries)*12 + 4

	scaleOffset := payloadOffset
	tieOffset := scaleOffset + uint32(len(scale))*8
	geoOffset := tieOffset + uint32(len(tiepoint))*8
	ndOffset := geoOffset + uint32(len(geokeys))*2

	entries = append(entries,
		ifdEntry{33550, typeDouble, uint32(len(scale)), scaleOffset},
		ifdEntry{33922, typeDouble, uint32(len(tiepoint)), tieOffset},
		ifdEntry{34735, typeShort, uint32(len(geokeys)), geoOffset},
	)
	// Values that fit in 4 bytes must be stored inline in the value field.
	ndInline := len(noData) <= 4
	if noData != nil {
		ndValue := ndOffset
		if ndInline {
			var packed [4]byte
			copy(packed[:], noData)
			ndValue = le.Uint32(packed[:])
		}
		entries = append(entries, ifdEntry{42113, typeASCII, uint32(len(noData)), ndValue})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	binary.Write(&buf, le, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(&buf, le, e.tag)
		binary.Write(&buf, le, e.typ)
		binary.Write(&buf, le, e.count)
		binary.Write(&buf, le, e.value)
	}
	binary.Write(&buf, le, uint32(0)) // no next IFD

	for _, v := range scale {
		binary.Write(&buf, le, math.Float64bits(v))
	}
	for _, v := range tiepoint {
		binary.Write(&buf, le, math.Float64bits(v))
	}
	for _, v := range geokeys {
		binary.Write(&buf, le, v)
	}
	if noData != nil && !ndInline {
		buf.Write(noData)
	}
	return buf.Bytes()
}

// FrameOptions describes an in-memory uint8 frame fixture.
type FrameOptions struct {
	Width   int
	Height  int
	Fill    int64
	Pix     []byte // overrides Fill when set
	OriginX float64
	OriginY float64
	Res     float64
	CRS     string
	Tag     string
	NoData  *float64
	URI     string
}

// Frame builds a uint8 frame without going through TIFF encoding.
func Frame(opts FrameOptions) *raster.Frame {
	g := raster.NewGrid(raster.Uint8, opts.Width, opts.Height)
	if opts.Pix != nil {
		copy(g.Bytes(), opts.Pix)
	} else if opts.Fill != 0 {
		for r := 0; r < opts.Height; r++ {
			for c := 0; c < opts.Width; c++ {
				g.SetValue(r, c, opts.Fill)
			}
		}
	}
	crs := opts.CRS
	if crs == "" {
		crs = "EPSG:32611"
	}
	res := opts.Res
	if res == 0 {
		res = 30
	}
	return &raster.Frame{
		Grid: g,
		Res:  raster.Resolution{X: res, Y: res},
		Bounds: raster.Bounds{
			MinX: opts.OriginX,
			MinY: opts.OriginY - float64(opts.Height)*res,
			MaxX: opts.OriginX + float64(opts.Width)*res,
			MaxY: opts.OriginY,
		},
		CRS:    crs,
		Tag:    opts.Tag,
		NoData: opts.NoData,
		URI:    opts.URI,
	}
}
