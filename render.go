package main

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// Draw renders the displayed chemical, the brush cursor and the optional
// debug overlay.
func (g *Game) Draw(screen *ebiten.Image) {
	gr := g.sys.Grid()
	d := gr.Dims()
	c := displayChemical
	if c >= gr.Chemicals() {
		c = 0
	}
	g.pal.colorize(g.pixels, gr, c, displaySlice(d))
	screen.WritePixels(g.pixels)

	cx, cy := int(g.cx), int(g.cy)
	cursor := color.RGBA{255, 60, 60, 255}
	drawLine(screen, cx-brushRadius, cy, cx+brushRadius, cy, cursor)
	drawLine(screen, cx, cy-brushRadius, cx, cy+brushRadius, cursor)

	if g.cfg.Debug {
		tps := ebiten.ActualTPS()
		if tps < 0 {
			tps = 0
		}
		state := "running"
		if g.paused {
			state = "paused"
		}
		msg := fmt.Sprintf("FPS: %.1f (%.1f TPS)\nSteps: %d (%s)\nSteps/frame: %d (%.0f/s, +/-)\nUpdate: %.2f ms\nBackend: %s",
			ebiten.ActualFPS(), tps, g.sys.Timesteps(), state, g.stepsPerFrame, g.simStepsPerSecond(),
			g.lastSimDuration.Seconds()*1000, g.sys.Config().Backend)
		if name := g.sys.DeviceName(); name != "" {
			msg += " (" + name + ")"
		}
		ebitenutil.DebugPrint(screen, msg)
	}
}

// Layout reports the logical screen size: one pixel per cell.
func (g *Game) Layout(_, _ int) (int, int) {
	d := g.sys.Grid().Dims()
	return d.X, d.Y
}

// drawLine plots a line segment using Bresenham's integer algorithm.
func drawLine(screen *ebiten.Image, x0, y0, x1, y1 int, clr color.Color) {
	b := screen.Bounds()
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if x0 >= b.Min.X && x0 < b.Max.X && y0 >= b.Min.Y && y0 < b.Max.Y {
			screen.Set(x0, y0, clr)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}
