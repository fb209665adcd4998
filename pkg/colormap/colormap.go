// Package colormap provides color schemes for rendering categorical and
// continuous rasters.
package colormap

import (
	"image/color"
)

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	At(t float64) color.Color
	AtIndex(i int) color.Color
}

// LinearColormap interpolates linearly between control colors.
type LinearColormap struct {
	colors []color.RGBA
}

// At returns the color at position t (0-1).
func (c LinearColormap) At(t float64) color.Color {
	if t <= 0 {
		return c.colors[0]
	}
	if t >= 1 {
		return c.colors[len(c.colors)-1]
	}

	idx := t * float64(len(c.colors)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(c.colors) {
		upper = len(c.colors) - 1
	}

	frac := idx - float64(lower)
	return interpolate(c.colors[lower], c.colors[upper], frac)
}

// AtIndex returns color at index i (wraps around).
func (c LinearColormap) AtIndex(i int) color.Color {
	return c.colors[i%len(c.colors)]
}

func interpolate(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c1.R) + t*(float64(c2.R)-float64(c1.R))),
		G: uint8(float64(c1.G) + t*(float64(c2.G)-float64(c1.G))),
		B: uint8(float64(c1.B) + t*(float64(c2.B)-float64(c1.B))),
		A: 255,
	}
}

// Viridis colormap (matplotlib viridis)
var Viridis = LinearColormap{
	colors: []color.RGBA{
		{68, 1, 84, 255},
		{72, 35, 116, 255},
		{64, 67, 135, 255},
		{52, 94, 141, 255},
		{41, 120, 142, 255},
		{32, 144, 140, 255},
		{34, 167, 132, 255},
		{68, 190, 112, 255},
		{121, 209, 81, 255},
		{189, 222, 38, 255},
		{253, 231, 37, 255},
	},
}

// CategoricalColormap provides distinct colors for categories.
type CategoricalColormap struct {
	colors []color.RGBA
}

// At returns color at position t.
func (c CategoricalColormap) At(t float64) color.Color {
	idx := int(t * float64(len(c.colors)))
	if idx >= len(c.colors) {
		idx = len(c.colors) - 1
	}
	return c.colors[idx]
}

// AtIndex returns color at index.
func (c CategoricalColormap) AtIndex(i int) color.Color {
	return c.colors[i%len(c.colors)]
}

// Categorical colormap with 20 distinct colors
var Categorical = CategoricalColormap{
	colors: []color.RGBA{
		{31, 119, 180, 255},  // Blue
		{255, 127, 14, 255},  // Orange
		{44, 160, 44, 255},   // Green
		{214, 39, 40, 255},   // Red
		{148, 103, 189, 255}, // Purple
		{140, 86, 75, 255},   // Brown
		{227, 119, 194, 255}, // Pink
		{127, 127, 127, 255}, // Gray
		{188, 189, 34, 255},  // Olive
		{23, 190, 207, 255},  // Cyan
		{174, 199, 232, 255}, // Light blue
		{255, 187, 120, 255}, // Light orange
		{152, 223, 138, 255}, // Light green
		{255, 152, 150, 255}, // Light red
		{197, 176, 213, 255}, // Light purple
		{196, 156, 148, 255}, // Light brown
		{247, 182, 210, 255}, // Light pink
		{199, 199, 199, 255}, // Light gray
		{219, 219, 141, 255}, // Light olive
		{158, 218, 229, 255}, // Light cyan
	},
}

// Discrete assigns an explicit color per relabeled category value.
// Values outside the table render transparent, as does the designated
// transparent value itself.
type Discrete struct {
	start       int64
	colors      []color.RGBA
	labels      []string
	transparent int64
}

// NewDiscrete builds a discrete colormap for the dense value range
// [start, start+n) by sampling base. The transparent value keeps a fully
// transparent color.
func NewDiscrete(base Colormap, start int64, n int, transparent int64) *Discrete {
	d := &Discrete{
		start:       start,
		colors:      make([]color.RGBA, n),
		labels:      make([]string, n),
		transparent: transparent,
	}
	for i := 0; i < n; i++ {
		r, g, b, _ := base.AtIndex(i).RGBA()
		d.colors[i] = color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 255}
	}
	return d
}

// SetColor overrides the color for one category value.
func (d *Discrete) SetColor(value int64, c color.RGBA) {
	if i := int(value - d.start); i >= 0 && i < len(d.colors) {
		d.colors[i] = c
	}
}

// SetLabel attaches a legend label to one category value.
func (d *Discrete) SetLabel(value int64, label string) {
	if i := int(value - d.start); i >= 0 && i < len(d.labels) {
		d.labels[i] = label
	}
}

// Len returns the number of categories in the table.
func (d *Discrete) Len() int { return len(d.colors) }

// Start returns the first value of the dense range.
func (d *Discrete) Start() int64 { return d.start }

// Label returns the legend label for a category value.
func (d *Discrete) Label(value int64) string {
	if i := int(value - d.start); i >= 0 && i < len(d.labels) {
		return d.labels[i]
	}
	return ""
}

// Color returns the RGBA color for a category value. The transparent
// value and values outside the table return a zero alpha color.
func (d *Discrete) Color(value int64) color.RGBA {
	if value == d.transparent {
		return color.RGBA{}
	}
	i := int(value - d.start)
	if i < 0 || i >= len(d.colors) {
		return color.RGBA{}
	}
	return d.colors[i]
}

// At maps t over the dense range.
func (d *Discrete) At(t float64) color.Color {
	idx := int(t * float64(len(d.colors)))
	if idx >= len(d.colors) {
		idx = len(d.colors) - 1
	}
	return d.colors[idx]
}

// AtIndex returns the color for index i (wraps around).
func (d *Discrete) AtIndex(i int) color.Color {
	return d.colors[i%len(d.colors)]
}

// SurfaceWater builds the standard palette for DSWx-style surface water
// layers relabeled onto [start, start+n): not-water, open water, partial
// water, then the snow/cloud/ocean-mask classes.
func SurfaceWater(start int64, n int, transparent int64) *Discrete {
	waterColors := []color.RGBA{
		{224, 224, 224, 255}, // Not water
		{0, 70, 220, 255},    // Open water
		{113, 174, 255, 255}, // Partial surface water
		{216, 240, 255, 255}, // Snow/ice
		{160, 160, 160, 255}, // Cloud/cloud shadow
		{25, 51, 107, 255},   // Ocean mask
	}
	waterLabels := []string{
		"Not water",
		"Open water",
		"Partial surface water",
		"Snow/ice",
		"Cloud/cloud shadow",
		"Ocean masked",
	}
	d := NewDiscrete(Categorical, start, n, transparent)
	for i := 0; i < n && i < len(waterColors); i++ {
		d.colors[i] = waterColors[i]
		d.labels[i] = waterLabels[i]
	}
	return d
}
