// Package body defines voxel bodies: a grid of material templates that the
// simulator turns into soft, deformable robots.
package body

import (
	"errors"

	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/grid"
)

// ErrEmptyBody is returned when an operation needs at least one voxel.
var ErrEmptyBody = errors.New("body has no voxels")

// Material holds the static physical parameters of one voxel.
// It is never mutated during a simulation; per-step deformation state lives
// in the simulator's own components.
type Material struct {
	SideLength        float64 `json:"side_length"`
	Mass              float64 `json:"mass"`
	SpringF           float64 `json:"spring_f"`
	SpringD           float64 `json:"spring_d"`
	LinearDamping     float64 `json:"linear_damping"`
	Friction          float64 `json:"friction"`
	AreaRatioMaxDelta float64 `json:"area_ratio_max_delta"`
}

// MaterialFromConfig builds the material template described by cfg.
func MaterialFromConfig(cfg config.MaterialConfig) Material {
	return Material{
		SideLength:        cfg.SideLength,
		Mass:              cfg.Mass,
		SpringF:           cfg.SpringF,
		SpringD:           cfg.SpringD,
		LinearDamping:     cfg.LinearDamping,
		Friction:          cfg.Friction,
		AreaRatioMaxDelta: cfg.AreaRatioMaxDelta,
	}
}

// Spawn returns a fresh instance of the template.
func (m Material) Spawn() *Material {
	c := m
	return &c
}

// Body is a voxel grid. Empty cells have no material.
type Body struct {
	*grid.Grid[*Material]
}

// New creates an empty w x h body.
func New(w, h int) *Body {
	return &Body{Grid: grid.New[*Material](w, h)}
}

// FromMask fills every set cell of mask with a fresh copy of tmpl.
func FromMask(mask *grid.Grid[bool], tmpl Material) *Body {
	b := New(mask.W(), mask.H())
	mask.Each(func(x, y int, v bool) {
		if v {
			b.Set(x, y, tmpl.Spawn())
		}
	})
	return b
}

// Filled creates a w x h body with every cell occupied.
func Filled(w, h int, tmpl Material) *Body {
	return &Body{Grid: grid.Create(w, h, func(x, y int) (*Material, bool) {
		return tmpl.Spawn(), true
	})}
}

// Clone deep-copies the body, materials included.
func (b *Body) Clone() *Body {
	return &Body{Grid: grid.Create(b.W(), b.H(), func(x, y int) (*Material, bool) {
		m, ok := b.Get(x, y)
		if !ok {
			return nil, false
		}
		return m.Spawn(), true
	})}
}

// Equal reports whether both bodies have the same size, live-cell pattern
// and material parameters.
func (b *Body) Equal(o *Body) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.W() != o.W() || b.H() != o.H() {
		return false
	}
	for x := 0; x < b.W(); x++ {
		for y := 0; y < b.H(); y++ {
			m1, ok1 := b.Get(x, y)
			m2, ok2 := o.Get(x, y)
			if ok1 != ok2 {
				return false
			}
			if ok1 && *m1 != *m2 {
				return false
			}
		}
	}
	return true
}

// LargestConnected keeps only the largest 4-connected voxel group.
func (b *Body) LargestConnected() *Body {
	return &Body{Grid: grid.LargestConnected(b.Grid)}
}

// Crop shrinks the body to its bounding box. Returns nil for an empty body.
func (b *Body) Crop() *Body {
	g := grid.Crop(b.Grid)
	if g == nil {
		return nil
	}
	return &Body{Grid: g}
}
