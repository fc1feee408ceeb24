package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/voxsoc/components"
)

// ActuationSystem turns each voxel's controller signal into spring rest
// lengths. A signal of +1 shrinks the voxel's target area by MaxDelta, -1
// grows it by the same amount.
type ActuationSystem struct {
	filter  ecs.Filter1[components.Voxel]
	springs *ecs.Map1[components.Spring]
}

// NewActuationSystem creates an actuation system.
func NewActuationSystem(w *ecs.World) *ActuationSystem {
	return &ActuationSystem{
		filter:  *ecs.NewFilter1[components.Voxel](w),
		springs: ecs.NewMap1[components.Spring](w),
	}
}

// Update runs the actuation system.
func (s *ActuationSystem) Update() {
	query := s.filter.Query()
	for query.Next() {
		v := query.Get()
		scale := math.Sqrt(math.Max(0, 1-v.Actuation*v.MaxDelta))
		for _, e := range v.Springs {
			sp := s.springs.Get(e)
			sp.Rest = sp.BaseRest * scale
		}
	}
}

// AreaSystem recomputes every voxel's area ratio from its corner nodes.
type AreaSystem struct {
	filter ecs.Filter1[components.Voxel]
	pos    *ecs.Map1[components.Position]
}

// NewAreaSystem creates an area system.
func NewAreaSystem(w *ecs.World) *AreaSystem {
	return &AreaSystem{
		filter: *ecs.NewFilter1[components.Voxel](w),
		pos:    ecs.NewMap1[components.Position](w),
	}
}

// Update runs the area system.
func (s *AreaSystem) Update() {
	query := s.filter.Query()
	for query.Next() {
		v := query.Get()
		var corners [4]components.Position
		for i, e := range v.Corners {
			corners[i] = *s.pos.Get(e)
		}
		v.AreaRatio = PolygonArea(corners[:]) / v.RestArea
	}
}

// PolygonArea returns the signed shoelace area of a polygon; positive for
// counter-clockwise vertex order.
func PolygonArea(pts []components.Position) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a / 2
}
