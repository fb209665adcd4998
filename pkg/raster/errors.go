package raster

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when a merge or stack is attempted with no
// input frames.
var ErrEmptyInput = errors.New("raster: no input frames")

// ReadError reports a failure to open or decode a source raster.
type ReadError struct {
	URI    string
	Reason string
	Err    error
}

func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("read %s: %s: %v", e.URI, e.Reason, e.Err)
	}
	return fmt.Sprintf("read %s: %s", e.URI, e.Reason)
}

func (e *ReadError) Unwrap() error { return e.Err }

// CRSMismatchError reports frames with differing coordinate reference
// systems. Frames are never silently reprojected.
type CRSMismatchError struct {
	Want  string
	Got   string
	Where string // URI or tag of the offending input
}

func (e *CRSMismatchError) Error() string {
	return fmt.Sprintf("crs mismatch at %s: got %q, expected %q", e.Where, e.Got, e.Want)
}

// ResolutionMismatchError reports frames with differing per-axis
// resolutions. Frames are never silently resampled.
type ResolutionMismatchError struct {
	Want  Resolution
	Got   Resolution
	Where string
}

func (e *ResolutionMismatchError) Error() string {
	return fmt.Sprintf("resolution mismatch at %s: got (%g, %g), expected (%g, %g)",
		e.Where, e.Got.X, e.Got.Y, e.Want.X, e.Want.Y)
}

// DTypeMismatchError reports frames with differing element types. Pixels
// are never silently widened.
type DTypeMismatchError struct {
	Want  DType
	Got   DType
	Where string
}

func (e *DTypeMismatchError) Error() string {
	return fmt.Sprintf("dtype mismatch at %s: got %s, expected %s", e.Where, e.Got, e.Want)
}

// ShapeMismatchError reports a stack slice whose pixel grid shape differs
// from the first slice.
type ShapeMismatchError struct {
	Tag        string
	WantWidth  int
	WantHeight int
	GotWidth   int
	GotHeight  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch at tag %q: got %dx%d, expected %dx%d",
		e.Tag, e.GotWidth, e.GotHeight, e.WantWidth, e.WantHeight)
}

// UnmappedValueError reports a pixel value not covered by the supplied
// category codes during strict relabeling.
type UnmappedValueError struct {
	Value int64
}

func (e *UnmappedValueError) Error() string {
	return fmt.Sprintf("relabel: pixel value %d not in category codes", e.Value)
}

// InvalidTransparentValueError reports a transparent code that is not a
// member of the category codes, so its mapped value cannot appear in the
// output range.
type InvalidTransparentValueError struct {
	Value int64
}

func (e *InvalidTransparentValueError) Error() string {
	return fmt.Sprintf("relabel: transparent code %d not in category codes", e.Value)
}
