package controller

import "math"

// Network maps an input vector to an output vector.
type Network interface {
	Forward(in []float64) []float64
}

// Closed is a centralized closed-loop controller. Each step it feeds the
// area ratio deviation of every live voxel plus sin and cos of 2πt to
// Net and drives voxel k with output k.
type Closed struct {
	W, H    int
	Net     Network
	cells   []int     // flat indices of live cells, in input order
	signals []float64 // by flat index
}

// ClosedInputs returns the network input size for a body with n live cells.
func ClosedInputs(n int) int { return n + 2 }

// NewClosed creates a closed-loop controller for the given live cells of a
// w x h grid. The network must accept ClosedInputs(len(cells)) inputs and
// produce len(cells) outputs.
func NewClosed(w, h int, cells []int, net Network) *Closed {
	return &Closed{
		W:       w,
		H:       h,
		Net:     net,
		cells:   append([]int(nil), cells...),
		signals: make([]float64, w*h),
	}
}

// Sense implements Sensing.
func (c *Closed) Sense(t float64, areaRatios []float64) {
	in := make([]float64, ClosedInputs(len(c.cells)))
	for i := range c.cells {
		if i < len(areaRatios) {
			in[i] = areaRatios[i] - 1
		}
	}
	in[len(c.cells)] = math.Sin(2 * math.Pi * t)
	in[len(c.cells)+1] = math.Cos(2 * math.Pi * t)

	out := c.Net.Forward(in)
	for k, cell := range c.cells {
		if k < len(out) {
			c.signals[cell] = clampSignal(out[k])
		}
	}
}

// Signal implements Controller.
func (c *Closed) Signal(x, y int, t float64) float64 {
	if x < 0 || x >= c.W || y < 0 || y >= c.H {
		return 0
	}
	return c.signals[x*c.H+y]
}
