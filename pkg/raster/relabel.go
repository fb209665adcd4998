package raster

import (
	"fmt"
	"sort"
)

// RelabelMap is the bijection from original category codes to a dense
// zero-based value range, recorded alongside relabeled data so callers can
// build discrete legends or invert the mapping.
type RelabelMap struct {
	// Codes holds the original codes in ascending order, after the
	// optional missing-code collapse. Codes[i] maps to RangeStart+i.
	Codes []int64
	// Forward maps each original code to its new value.
	Forward map[int64]int64
	// RangeStart is the first value of the dense output range.
	RangeStart int64
	// Missing and Transparent record the caller's sentinel and background
	// codes. When Collapsed is true, missing pixels were rewritten to the
	// transparent code before mapping, which is lossy by design.
	Missing     int64
	Transparent int64
	Collapsed   bool
}

// Count returns the number of mapped categories.
func (m *RelabelMap) Count() int { return len(m.Codes) }

// NewValue returns the mapped value for an original code.
func (m *RelabelMap) NewValue(code int64) (int64, bool) {
	v, ok := m.Forward[code]
	return v, ok
}

// Inverse returns the new-value-to-original-code mapping.
func (m *RelabelMap) Inverse() map[int64]int64 {
	inv := make(map[int64]int64, len(m.Forward))
	for code, v := range m.Forward {
		inv[v] = code
	}
	return inv
}

// TransparentValue returns the mapped value of the transparent code.
func (m *RelabelMap) TransparentValue() int64 {
	return m.Forward[m.Transparent]
}

// RelabelOptions configures a relabel pass.
type RelabelOptions struct {
	// Codes is the full category set. When nil, the set is derived from
	// the distinct values observed in the data (a full scan). When
	// supplied, it must cover every value present; uncovered values fail
	// with UnmappedValueError unless Permissive is set.
	Codes []int64
	// MissingCode is the sentinel meaning "no valid observation".
	MissingCode int64
	// TransparentCode is the category that renders as background.
	TransparentCode int64
	// CollapseMissing rewrites missing pixels to the transparent code and
	// drops the missing code from the category set, avoiding a wider
	// element type just to represent "no value".
	CollapseMissing bool
	// RangeStart is the first value of the dense output range.
	RangeStart int64
	// Permissive passes pixels whose value is not among Codes through
	// unmapped instead of failing. The default is strict failure.
	Permissive bool
}

// Relabel rewrites the grid's category codes into the consecutive range
// [RangeStart, RangeStart+count), preserving ascending code order. The
// input grid is left untouched; a relabeled copy is returned together with
// the mapping. The grid must have an integer element type.
func Relabel(g *Grid, opts RelabelOptions) (*Grid, *RelabelMap, error) {
	if !g.DType().Integer() {
		return nil, nil, fmt.Errorf("relabel: %s grid has no categorical interpretation", g.DType())
	}

	out := g.Clone()
	n := out.Width() * out.Height()

	codes := append([]int64(nil), opts.Codes...)
	if codes == nil {
		codes = distinctValues(out)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	codes = dedupe(codes)

	if opts.CollapseMissing {
		for i := 0; i < n; i++ {
			if out.valueAt(i) == opts.MissingCode {
				out.setValueAt(i, opts.TransparentCode)
			}
		}
		codes = remove(codes, opts.MissingCode)
	}

	if !contains(codes, opts.TransparentCode) {
		return nil, nil, &InvalidTransparentValueError{Value: opts.TransparentCode}
	}

	forward := make(map[int64]int64, len(codes))
	for i, c := range codes {
		forward[c] = opts.RangeStart + int64(i)
	}
	if err := checkRange(out.DType(), opts.RangeStart, len(codes)); err != nil {
		return nil, nil, err
	}

	for i := 0; i < n; i++ {
		v := out.valueAt(i)
		nv, ok := forward[v]
		if !ok {
			if opts.Permissive {
				continue
			}
			return nil, nil, &UnmappedValueError{Value: v}
		}
		if nv != v {
			out.setValueAt(i, nv)
		}
	}

	return out, &RelabelMap{
		Codes:       codes,
		Forward:     forward,
		RangeStart:  opts.RangeStart,
		Missing:     opts.MissingCode,
		Transparent: opts.TransparentCode,
		Collapsed:   opts.CollapseMissing,
	}, nil
}

// RelabelStack relabels every slice with one shared mapping. When Codes is
// nil the category set is derived from all slices combined, so the mapping
// is consistent across the whole stack.
func RelabelStack(s *Stack, opts RelabelOptions) (*Stack, *RelabelMap, error) {
	if s.Len() == 0 {
		return nil, nil, ErrEmptyInput
	}
	if opts.Codes == nil {
		seen := make(map[int64]struct{})
		for _, g := range s.Slices {
			if !g.DType().Integer() {
				return nil, nil, fmt.Errorf("relabel: %s grid has no categorical interpretation", g.DType())
			}
			n := g.Width() * g.Height()
			for i := 0; i < n; i++ {
				seen[g.valueAt(i)] = struct{}{}
			}
		}
		codes := make([]int64, 0, len(seen))
		for v := range seen {
			codes = append(codes, v)
		}
		opts.Codes = codes
	}

	out := &Stack{
		Tags:   append([]string(nil), s.Tags...),
		Slices: make([]*Grid, 0, s.Len()),
		Res:    s.Res,
		Bounds: s.Bounds,
		CRS:    s.CRS,
	}
	var rm *RelabelMap
	for _, g := range s.Slices {
		rg, m, err := Relabel(g, opts)
		if err != nil {
			return nil, nil, err
		}
		out.Slices = append(out.Slices, rg)
		rm = m
	}
	return out, rm, nil
}

func distinctValues(g *Grid) []int64 {
	seen := make(map[int64]struct{})
	n := g.Width() * g.Height()
	for i := 0; i < n; i++ {
		seen[g.valueAt(i)] = struct{}{}
	}
	out := make([]int64, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	return out
}

func dedupe(sorted []int64) []int64 {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func remove(codes []int64, v int64) []int64 {
	out := codes[:0]
	for _, c := range codes {
		if c != v {
			out = append(out, c)
		}
	}
	return out
}

func contains(codes []int64, v int64) bool {
	for _, c := range codes {
		if c == v {
			return true
		}
	}
	return false
}

// checkRange verifies the dense output range fits the grid's element type.
func checkRange(d DType, start int64, count int) error {
	var lo, hi int64
	switch d {
	case Uint8:
		lo, hi = 0, 255
	case Int16:
		lo, hi = -32768, 32767
	case Uint16:
		lo, hi = 0, 65535
	case Int32:
		lo, hi = -2147483648, 2147483647
	}
	end := start + int64(count) - 1
	if start < lo || end > hi {
		return fmt.Errorf("relabel: output range [%d, %d] does not fit %s", start, end, d)
	}
	return nil
}
