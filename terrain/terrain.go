// Package terrain defines ground profiles for the physics world.
package terrain

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

const (
	// Length is the horizontal extent of generated profiles.
	Length = 2000.0
	// BorderHeight is the height of the walls closing each profile.
	BorderHeight = 100.0
)

// Terrain is a ground polyline. Xs is strictly increasing.
type Terrain struct {
	Name      string
	Xs, Ys    []float64
	Placement float64 // x of the robot's left edge at spawn
}

// New builds a terrain from a polyline and places robots one unit right of
// the first wall.
func New(name string, xs, ys []float64) (*Terrain, error) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return nil, fmt.Errorf("terrain %s: need at least two points with matching coordinates, got %d/%d", name, len(xs), len(ys))
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("terrain %s: xs must increase (x[%d]=%v, x[%d]=%v)", name, i-1, xs[i-1], i, xs[i])
		}
	}
	return &Terrain{Name: name, Xs: xs, Ys: ys, Placement: xs[1] + 1}, nil
}

func mustNew(name string, xs, ys []float64) *Terrain {
	t, err := New(name, xs, ys)
	if err != nil {
		panic(err)
	}
	return t
}

// StartX returns the x where a robot's left edge is placed.
func (t *Terrain) StartX() float64 { return t.Placement }

// YAt returns the ground height at x, clamped to the end points.
func (t *Terrain) YAt(x float64) float64 {
	i := t.segment(x)
	if i < 0 {
		return t.Ys[0]
	}
	if i >= len(t.Xs)-1 {
		return t.Ys[len(t.Ys)-1]
	}
	f := (x - t.Xs[i]) / (t.Xs[i+1] - t.Xs[i])
	return t.Ys[i] + f*(t.Ys[i+1]-t.Ys[i])
}

// Normal returns the unit normal of the ground at x, pointing up.
func (t *Terrain) Normal(x float64) (nx, ny float64) {
	i := t.segment(x)
	if i < 0 || i >= len(t.Xs)-1 {
		return 0, 1
	}
	dx := t.Xs[i+1] - t.Xs[i]
	dy := t.Ys[i+1] - t.Ys[i]
	l := math.Hypot(dx, dy)
	return -dy / l, dx / l
}

// segment returns i such that Xs[i] < x <= Xs[i+1]; -1 at or left of the
// first point, len(Xs)-1 right of the last.
func (t *Terrain) segment(x float64) int {
	return sort.SearchFloat64s(t.Xs, x) - 1
}

// Flat is a level floor between two walls.
func Flat() *Terrain {
	return mustNew("flat",
		[]float64{0, 10, Length - 10, Length},
		[]float64{BorderHeight, 0, 0, BorderHeight})
}

// Uneven samples 50 random heights in [0, h).
func Uneven(h float64, seed int64) *Terrain {
	const n = 50
	rng := rand.New(rand.NewSource(seed))
	xs := make([]float64, n+2)
	ys := make([]float64, n+2)
	xs[0], ys[0] = 0, BorderHeight
	xs[n+1], ys[n+1] = Length, BorderHeight
	for i := 1; i <= n; i++ {
		xs[i] = 1 + float64(i-1)*(Length-2)/n
		ys[i] = rng.Float64() * h
	}
	return mustNew(fmt.Sprintf("uneven%g", h), xs, ys)
}

// Hilly is a gaussian random walk with mean step width w and height
// deviation h. Perlin noise adds small-scale roughness on top.
func Hilly(h, w float64, seed int64) *Terrain {
	rng := rand.New(rand.NewSource(seed))
	noise := NewPerlin(seed)
	xs := []float64{0, 10}
	ys := []float64{BorderHeight, 0}
	for xs[len(xs)-1] < Length {
		last := len(xs) - 1
		x := xs[last] + math.Max(1, (rng.NormFloat64()*0.25+1)*w)
		y := ys[last] + rng.NormFloat64()*h + noise.Noise1D(x/w)*h/4
		xs = append(xs, x)
		ys = append(ys, y)
	}
	end := xs[len(xs)-1]
	xs = append(xs, end+10, end+20)
	ys = append(ys, 0, BorderHeight)
	return mustNew(fmt.Sprintf("hilly-%g-%g-%d", h, w, seed), xs, ys)
}

// Hiking is a short course of bumps and ledges.
func Hiking() *Terrain {
	t := mustNew("hiking",
		[]float64{0, 3, 30, 40, 42, 45, 55, 57, 60, 65, 70, 80, 180},
		[]float64{BorderHeight, 0, 0, 5, 4, 5, 5, 7, 5, 5, 2, 4, 2})
	t.Placement = 5
	return t
}

// Stairway is a flight of one-unit steps.
func Stairway() *Terrain {
	t := mustNew("stairway",
		[]float64{0, 5, 30, 30.1, 40, 40.1, 50, 50.1, 60, 60.1, 70, 70.1, 80, 80.1, 90, 200},
		[]float64{BorderHeight, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 6})
	t.Placement = 5
	return t
}

// Bowl is a narrow pit used by the jump task.
func Bowl() *Terrain {
	t := mustNew("bowl",
		[]float64{0, 10, 50, 60},
		[]float64{BorderHeight, 0, 0, BorderHeight})
	t.Placement = 25
	return t
}

// ByName resolves flat, hiking, stairway, bowl, uneven<h> and
// hilly-<h>-<w>-<seed>. Generated terrains use seed 1 unless given.
func ByName(name string) (*Terrain, error) {
	switch name {
	case "flat":
		return Flat(), nil
	case "hiking":
		return Hiking(), nil
	case "stairway":
		return Stairway(), nil
	case "bowl":
		return Bowl(), nil
	}
	if rest, ok := strings.CutPrefix(name, "uneven"); ok {
		h, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return nil, fmt.Errorf("terrain %q: bad height: %w", name, err)
		}
		return Uneven(h, 1), nil
	}
	if rest, ok := strings.CutPrefix(name, "hilly"); ok {
		h, w, seed := 1.0, 10.0, int64(1)
		parts := strings.Split(strings.TrimPrefix(rest, "-"), "-")
		var err error
		if len(parts) == 3 {
			if h, err = strconv.ParseFloat(parts[0], 64); err == nil {
				if w, err = strconv.ParseFloat(parts[1], 64); err == nil {
					seed, err = strconv.ParseInt(parts[2], 10, 64)
				}
			}
		} else if rest != "" {
			err = fmt.Errorf("want hilly-<h>-<w>-<seed>")
		}
		if err != nil {
			return nil, fmt.Errorf("terrain %q: %w", name, err)
		}
		return Hilly(h, w, seed), nil
	}
	return nil, fmt.Errorf("unknown terrain %q", name)
}
