// Package controller produces per-voxel actuation signals.
package controller

import "math"

// Controller maps a voxel coordinate and simulated time to a signal in [-1, 1].
type Controller interface {
	Signal(x, y int, t float64) float64
}

// Sensing is implemented by controllers that read the body state before
// producing signals. The simulator calls Sense once per step, before any
// Signal call for that step.
type Sensing interface {
	Controller
	Sense(t float64, areaRatios []float64)
}

// Func adapts a plain function to Controller.
type Func func(x, y int, t float64) float64

// Signal implements Controller.
func (f Func) Signal(x, y int, t float64) float64 { return f(x, y, t) }

// TimeFunctions holds one function of time per cell, indexed x*H + y.
// Cells without a function are idle.
type TimeFunctions struct {
	W, H  int
	Funcs []func(t float64) float64
}

// NewTimeFunctions builds a controller by calling build for every cell.
func NewTimeFunctions(w, h int, build func(x, y int) func(t float64) float64) *TimeFunctions {
	tf := &TimeFunctions{W: w, H: h, Funcs: make([]func(float64) float64, w*h)}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			tf.Funcs[x*h+y] = build(x, y)
		}
	}
	return tf
}

// Signal implements Controller.
func (tf *TimeFunctions) Signal(x, y int, t float64) float64 {
	if x < 0 || x >= tf.W || y < 0 || y >= tf.H {
		return 0
	}
	f := tf.Funcs[x*tf.H+y]
	if f == nil {
		return 0
	}
	return clampSignal(f(t))
}

// PhaseSine returns an open-loop gait controller: every cell oscillates at
// 1 Hz with its own phase, sin(-2πt + π·phase). phases is indexed x + y*W;
// missing entries default to phase 0.
func PhaseSine(w, h int, phases []float64) *TimeFunctions {
	return NewTimeFunctions(w, h, func(x, y int) func(float64) float64 {
		var phase float64
		if i := x + y*w; i < len(phases) {
			phase = phases[i]
		}
		return func(t float64) float64 {
			return math.Sin(-2*math.Pi*t + math.Pi*phase)
		}
	})
}

func clampSignal(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	if math.IsNaN(v) {
		return 0
	}
	return v
}
