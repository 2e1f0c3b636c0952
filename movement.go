package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// movementVector returns WASD-based cursor movement scaled by moveSpeed.
func (g *Game) movementVector() (float64, float64) {
	dx, dy := 0.0, 0.0
	if ebiten.IsKeyPressed(ebiten.KeyW) {
		dy -= moveSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) {
		dy += moveSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyA) {
		dx -= moveSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) {
		dx += moveSpeed
	}
	if dx != 0 && dy != 0 {
		dx *= 0.7071
		dy *= 0.7071
	}
	return dx, dy
}

// handleControls processes the one-shot hotkeys.
func (g *Game) handleControls() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.reseed()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		g.adjustStepsPerFrame(-stepsPerFrameStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		g.adjustStepsPerFrame(stepsPerFrameStep)
	}
	return nil
}

// adjustStepsPerFrame clamps the per-frame batch within bounds.
func (g *Game) adjustStepsPerFrame(delta int) {
	g.stepsPerFrame += delta
	if g.stepsPerFrame < minStepsPerFrame {
		g.stepsPerFrame = minStepsPerFrame
	} else if g.stepsPerFrame > maxStepsPerFrame {
		g.stepsPerFrame = maxStepsPerFrame
	}
}

// simStepsPerSecond returns the nominal steps executed each second.
func (g *Game) simStepsPerSecond() float64 {
	return defaultTPS * float64(g.stepsPerFrame)
}
