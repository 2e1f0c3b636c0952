package main

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/mazznoer/colorgrad"

	"rdsim/internal/grid"
)

const paletteSize = 256

// palette maps a concentration in [0, 1] to one of paletteSize colours.
type palette [paletteSize]color.RGBA

func newPalette() *palette {
	var p palette
	for i, c := range colorgrad.Viridis().Colors(paletteSize) {
		p[i] = color.RGBAModel.Convert(c).(color.RGBA)
	}
	return &p
}

func (p *palette) at(v float32) color.RGBA {
	switch {
	case v != v || v <= 0:
		return p[0]
	case v >= 1:
		return p[len(p)-1]
	}
	return p[int(v*float32(len(p)-1))]
}

// colorize writes RGBA bytes for chemical c of layer z into pix, which must
// hold 4 bytes per cell of the layer.
func (p *palette) colorize(pix []byte, g *grid.Grid, c, z int) {
	d := g.Dims()
	for y := 0; y < d.Y; y++ {
		for x := 0; x < d.X; x++ {
			clr := p.at(g.At(c, x, y, z))
			base := 4 * (y*d.X + x)
			pix[base] = clr.R
			pix[base+1] = clr.G
			pix[base+2] = clr.B
			pix[base+3] = 255
		}
	}
}

// writeSnapshot saves chemical c of the displayed layer as a PNG.
func writeSnapshot(path string, g *grid.Grid, c int, p *palette) error {
	d := g.Dims()
	img := image.NewRGBA(image.Rect(0, 0, d.X, d.Y))
	p.colorize(img.Pix, g, c, displaySlice(d))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
