package main

import "time"

// Viewer defaults. The simulation itself is configured through flags.
const (
	defaultSize          = 256
	windowScale          = 2
	defaultTPS           = 60.0
	defaultStepsPerFrame = 20
	stepsPerFrameStep    = 5
	minStepsPerFrame     = 1
	maxStepsPerFrame     = 1000
	defaultDensity       = 0.1
	seedRadius           = 5
	brushRadius          = 3
	moveSpeed            = 2
	brushDelay           = 60 / 4
	headlessLogInterval  = 2 * time.Second
	defaultHeadlessSteps = 10000
	displayChemical      = 1
)
