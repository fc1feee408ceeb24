package controller

// Pulse drives a single voxel with one bipolar impulse starting at Start: +1
// for the first half of Duration, -1 for the second half, and 0 outside the
// pulse. Every other voxel stays at 0.
type Pulse struct {
	W, H     int
	Target   int     // flat index x*H + y of the pulsed cell
	Duration float64 // seconds
	Start    float64 // seconds
}

// NewPulse creates a pulse controller for cell i of a w x h grid.
func NewPulse(w, h, i int, d float64) *Pulse {
	return &Pulse{W: w, H: h, Target: i, Duration: d}
}

// Degenerate reports whether the pulse can never fire.
func (p *Pulse) Degenerate() bool {
	return p.Duration <= 0 || p.Target < 0 || p.Target >= p.W*p.H
}

// Signal implements Controller.
func (p *Pulse) Signal(x, y int, t float64) float64 {
	if x*p.H+y != p.Target {
		return 0
	}
	t -= p.Start
	switch {
	case t < 0:
		return 0
	case t < p.Duration/2:
		if p.Duration <= 0 {
			return 0
		}
		return 1
	case t < p.Duration:
		return -1
	}
	return 0
}
