package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"rdsim/internal/pattern"
	"rdsim/internal/sim"
)

// Game drives a simulation from Ebiten's update loop and paints it.
type Game struct {
	sys *sim.System
	log *leveledLogger
	cfg viewerConfig
	pal *palette
	// overlays from the pattern file; nil means the default seed
	dirs []pattern.Directive

	pixels []byte

	// brush cursor in cells
	cx, cy     float64
	brushTimer int

	paused          bool
	stepsPerFrame   int
	lastSimDuration time.Duration
	seedRand        *rand.Rand
}

// newGame wraps a configured, seeded system.
func newGame(sys *sim.System, cfg viewerConfig, dirs []pattern.Directive, log *leveledLogger) *Game {
	d := sys.Grid().Dims()
	return &Game{
		sys:           sys,
		log:           log,
		cfg:           cfg,
		dirs:          dirs,
		pal:           newPalette(),
		pixels:        make([]byte, 4*d.X*d.Y),
		cx:            float64(d.X / 2),
		cy:            float64(d.Y / 2),
		stepsPerFrame: cfg.StepsPerFrame,
		seedRand:      rand.New(rand.NewSource(cfg.Seed + 1)),
	}
}

// Update applies input and advances the simulation by one frame's worth of
// steps. Escape ends the loop cleanly.
func (g *Game) Update() error {
	if err := g.handleControls(); err != nil {
		return err
	}

	d := g.sys.Grid().Dims()
	dx, dy := g.movementVector()
	g.cx = float64(clampCoord(int(g.cx+dx), 0, d.X-1))
	g.cy = float64(clampCoord(int(g.cy+dy), 0, d.Y-1))

	if ebiten.IsKeyPressed(ebiten.KeyEnter) {
		g.brushTimer++
		if g.brushTimer >= brushDelay {
			g.brushTimer = 0
			g.paint(int(g.cx), int(g.cy))
		}
	} else {
		g.brushTimer = brushDelay
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		mx, my := ebiten.CursorPosition()
		if mx >= 0 && mx < d.X && my >= 0 && my < d.Y {
			g.paint(mx, my)
		}
	}

	if g.paused {
		return nil
	}
	simStart := time.Now()
	if _, err := g.sys.Update(context.Background(), g.stepsPerFrame); err != nil {
		g.log.Errorf("update failed after %d steps: %v", g.sys.Timesteps(), err)
		return err
	}
	g.lastSimDuration = time.Since(simStart)
	return nil
}

// paint drops a disc of the displayed chemical at (x, y).
func (g *Game) paint(x, y int) {
	gr := g.sys.Grid()
	c := displayChemical
	if c >= gr.Chemicals() {
		c = 0
	}
	stampDisc(gr, brushFootprint, x, y, displaySlice(gr.Dims()), c, 1, g.sys.Config().Wrap)
	g.sys.MarkFieldsEdited()
}

// reseed restores the initial pattern with fresh noise.
func (g *Game) reseed() {
	if err := seedSystem(g.sys, g.cfg, g.dirs, g.seedRand.Int63()); err != nil {
		g.log.Warnf("reseeding: %v", err)
		return
	}
	g.log.Infof("reseeded")
}
