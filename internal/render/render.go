// Package render produces PNG previews and legends for relabeled
// slices using fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/fogleman/gg"

	"github.com/opera-tools/rastack/pkg/colormap"
	"github.com/opera-tools/rastack/pkg/raster"
)

// Options controls preview rendering. It is passed by value; the zero
// value renders at native scale without a legend.
type Options struct {
	Scale      int  // pixels per raster cell, minimum 1
	Legend     bool // append a legend strip below the image
	Background bool // fill the canvas white instead of transparent
}

func (o Options) scale() int {
	if o.Scale < 1 {
		return 1
	}
	return o.Scale
}

const (
	legendRowHeight = 24
	legendSwatch    = 16
	legendPad       = 4
)

// Renderer renders slices to PNG.
type Renderer struct {
	bufferPool sync.Pool
}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// RenderSlice renders one relabeled slice as a PNG. Each category
// takes its color from cm; the transparent value and unmapped values
// come out fully transparent unless a background is requested.
func (r *Renderer) RenderSlice(g *raster.Grid, cm *colormap.Discrete, opts Options) ([]byte, error) {
	if !g.DType().Integer() {
		return nil, fmt.Errorf("cannot render %s slice as categories", g.DType())
	}
	scale := opts.scale()
	w, h := g.Width()*scale, g.Height()*scale

	height := h
	if opts.Legend {
		height += legendHeight(cm)
	}
	dc := gg.NewContext(w, height)
	if opts.Background {
		dc.SetRGB(1, 1, 1)
		dc.Clear()
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for row := 0; row < g.Height(); row++ {
		for col := 0; col < g.Width(); col++ {
			c := cm.Color(g.Value(row, col))
			if c.A == 0 {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetRGBA(col*scale+dx, row*scale+dy, c)
				}
			}
		}
	}
	dc.DrawImage(img, 0, 0)

	if opts.Legend {
		r.drawLegend(dc, cm, h)
	}
	return r.encodeContext(dc)
}

func legendHeight(cm *colormap.Discrete) int {
	return cm.Len()*legendRowHeight + legendPad*2
}

// drawLegend draws one swatch and label per category below the image.
// gg's default face is basicfont, so no font files are needed.
func (r *Renderer) drawLegend(dc *gg.Context, cm *colormap.Discrete, top int) {
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(0, float64(top), float64(dc.Width()), float64(legendHeight(cm)))
	dc.Fill()

	for i := 0; i < cm.Len(); i++ {
		value := cm.Start() + int64(i)
		c := cm.AtIndex(i)
		y := float64(top + legendPad + i*legendRowHeight)

		dc.SetColor(c)
		dc.DrawRectangle(legendPad, y+legendPad, legendSwatch, legendSwatch)
		dc.Fill()

		label := cm.Label(value)
		if label == "" {
			label = fmt.Sprintf("class %d", i)
		}
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(label, legendPad*2+legendSwatch, y+legendRowHeight/2, 0, 0.35)
	}
}

func (r *Renderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	// Use fast PNG encoder
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
