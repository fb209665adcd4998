package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	gtiff "github.com/google/tiff"
	imagetiff "golang.org/x/image/tiff"
)

// GeoTIFF tags carrying the georeferencing metadata, plus GDAL's no-data
// extension tag.
const (
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGDALNoData          = 42113
)

// GeoTIFF keys resolving the coordinate reference system to an EPSG code.
const (
	keyGeographicType = 2048
	keyProjectedCST   = 3072

	geoKeyUserDefined = 32767
)

// DecodeGeoTIFF decodes a single-band GeoTIFF into a frame. Pixels keep
// their stored element type: 8-bit rasters (including palette-indexed
// ones) decode as uint8 and 16-bit rasters as uint16; other layouts fail
// with ReadError rather than being widened. The file must carry a pixel
// scale, a tiepoint, and a geokey directory resolving to an EPSG code.
func DecodeGeoTIFF(data []byte, uri string) (*Frame, error) {
	tf, err := gtiff.Parse(gtiff.NewReadAtReadSeeker(bytes.NewReader(data)), nil, nil)
	if err != nil {
		return nil, &ReadError{URI: uri, Reason: "not a TIFF", Err: err}
	}
	ifds := tf.IFDs()
	if len(ifds) == 0 {
		return nil, &ReadError{URI: uri, Reason: "no image directory"}
	}
	ifd := ifds[0]

	if ifd.HasField(tagModelTransformation) {
		return nil, &ReadError{URI: uri, Reason: "rotated model transformation not supported"}
	}
	scale, err := fieldFloat64s(ifd, tagModelPixelScale)
	if err != nil || len(scale) < 2 {
		return nil, &ReadError{URI: uri, Reason: "missing pixel scale", Err: err}
	}
	tiepoint, err := fieldFloat64s(ifd, tagModelTiepoint)
	if err != nil || len(tiepoint) < 6 {
		return nil, &ReadError{URI: uri, Reason: "missing tiepoint", Err: err}
	}
	crs, err := crsFromGeoKeys(ifd)
	if err != nil {
		return nil, &ReadError{URI: uri, Reason: "unresolvable crs", Err: err}
	}

	img, err := imagetiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ReadError{URI: uri, Reason: "pixel decode failed", Err: err}
	}
	grid, err := gridFromImage(img)
	if err != nil {
		return nil, &ReadError{URI: uri, Reason: err.Error()}
	}

	resX := scale[0]
	resY := math.Abs(scale[1])
	if resX <= 0 || resY <= 0 {
		return nil, &ReadError{URI: uri, Reason: fmt.Sprintf("non-positive pixel scale (%g, %g)", scale[0], scale[1])}
	}

	// Tiepoint anchors raster position (tiepoint[0..2]) to model position
	// (tiepoint[3..5]); for north-up rasters this is the upper-left corner.
	minX := tiepoint[3] - tiepoint[0]*resX
	maxY := tiepoint[4] + tiepoint[1]*resY

	f := &Frame{
		Grid: grid,
		Res:  Resolution{X: resX, Y: resY},
		Bounds: Bounds{
			MinX: minX,
			MinY: maxY - float64(grid.Height())*resY,
			MaxX: minX + float64(grid.Width())*resX,
			MaxY: maxY,
		},
		CRS: crs,
		URI: uri,
	}
	if nd, ok := noDataValue(ifd); ok {
		f.NoData = &nd
	}
	if err := f.Validate(); err != nil {
		return nil, &ReadError{URI: uri, Reason: "inconsistent georeferencing", Err: err}
	}
	return f, nil
}

func gridFromImage(img image.Image) (*Grid, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	switch src := img.(type) {
	case *image.Gray:
		g := NewGrid(Uint8, w, h)
		for r := 0; r < h; r++ {
			copy(g.Bytes()[r*w:(r+1)*w], src.Pix[r*src.Stride:r*src.Stride+w])
		}
		return g, nil
	case *image.Paletted:
		// Palette-indexed rasters keep their index values as categories.
		g := NewGrid(Uint8, w, h)
		for r := 0; r < h; r++ {
			copy(g.Bytes()[r*w:(r+1)*w], src.Pix[r*src.Stride:r*src.Stride+w])
		}
		return g, nil
	case *image.Gray16:
		g := NewGrid(Uint16, w, h)
		for r := 0; r < h; r++ {
			for c := 0; c < w; c++ {
				off := r*src.Stride + c*2
				v := uint16(src.Pix[off])<<8 | uint16(src.Pix[off+1])
				binary.LittleEndian.PutUint16(g.Bytes()[(r*w+c)*2:], v)
			}
		}
		return g, nil
	}
	return nil, fmt.Errorf("unsupported pixel layout %T", img)
}

// fieldFloat64s reads a DOUBLE-typed field as a float64 slice.
func fieldFloat64s(ifd gtiff.IFD, tag uint16) ([]float64, error) {
	if !ifd.HasField(tag) {
		return nil, fmt.Errorf("tag %d absent", tag)
	}
	val := ifd.GetField(tag).Value()
	raw := val.Bytes()
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("tag %d: malformed DOUBLE payload of %d bytes", tag, len(raw))
	}
	order := val.Order()
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(raw[i*8:]))
	}
	return out, nil
}

// crsFromGeoKeys resolves the EPSG identifier from the geokey directory,
// preferring the projected CRS key over the geographic one.
func crsFromGeoKeys(ifd gtiff.IFD) (string, error) {
	if !ifd.HasField(tagGeoKeyDirectory) {
		return "", fmt.Errorf("geokey directory absent")
	}
	val := ifd.GetField(tagGeoKeyDirectory).Value()
	raw := val.Bytes()
	if len(raw) < 8 || len(raw)%2 != 0 {
		return "", fmt.Errorf("malformed geokey directory of %d bytes", len(raw))
	}
	order := val.Order()
	shorts := make([]uint16, len(raw)/2)
	for i := range shorts {
		shorts[i] = order.Uint16(raw[i*2:])
	}

	// Directory header is 4 shorts; entries are (key, location, count,
	// value) quadruples. Short-valued keys store the value inline.
	var geographic, projected uint16
	for i := 4; i+3 < len(shorts); i += 4 {
		key, loc, v := shorts[i], shorts[i+1], shorts[i+3]
		if loc != 0 {
			continue
		}
		switch key {
		case keyGeographicType:
			geographic = v
		case keyProjectedCST:
			projected = v
		}
	}
	if projected != 0 && projected != geoKeyUserDefined {
		return fmt.Sprintf("EPSG:%d", projected), nil
	}
	if geographic != 0 && geographic != geoKeyUserDefined {
		return fmt.Sprintf("EPSG:%d", geographic), nil
	}
	return "", fmt.Errorf("no EPSG code in geokey directory")
}

// noDataValue reads GDAL's ASCII no-data tag.
func noDataValue(ifd gtiff.IFD) (float64, bool) {
	if !ifd.HasField(tagGDALNoData) {
		return 0, false
	}
	raw := ifd.GetField(tagGDALNoData).Value().Bytes()
	s := strings.TrimRight(string(raw), "\x00 ")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
