// Package systems contains ECS systems for the mass-spring world.
package systems

import (
	"errors"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/voxsoc/components"
)

var (
	// ErrNonFinite reports a NaN or infinite node position or velocity.
	ErrNonFinite = errors.New("non-finite node state")
	// ErrOverspeed reports a node moving faster than the configured limit.
	ErrOverspeed = errors.New("node speed limit exceeded")
)

// Ground is the surface nodes collide with.
type Ground interface {
	YAt(x float64) float64
	Normal(x float64) (nx, ny float64)
}

// ForceSystem resets each node's force to gravity plus linear damping.
type ForceSystem struct {
	filter  ecs.Filter3[components.Velocity, components.Force, components.Node]
	gravity float64
}

// NewForceSystem creates a force system. gravity is a positive magnitude
// pulling towards negative Y.
func NewForceSystem(w *ecs.World, gravity float64) *ForceSystem {
	return &ForceSystem{
		filter:  *ecs.NewFilter3[components.Velocity, components.Force, components.Node](w),
		gravity: gravity,
	}
}

// Update runs the force system.
func (s *ForceSystem) Update() {
	query := s.filter.Query()
	for query.Next() {
		vel, f, node := query.Get()
		f.X = -node.Damping * node.Mass * vel.X
		f.Y = -node.Damping*node.Mass*vel.Y - node.Mass*s.gravity
	}
}

// SpringSystem adds damped spring forces to the nodes each spring connects.
type SpringSystem struct {
	filter ecs.Filter1[components.Spring]
	pos    *ecs.Map1[components.Position]
	vel    *ecs.Map1[components.Velocity]
	force  *ecs.Map1[components.Force]
}

// NewSpringSystem creates a spring system.
func NewSpringSystem(w *ecs.World) *SpringSystem {
	return &SpringSystem{
		filter: *ecs.NewFilter1[components.Spring](w),
		pos:    ecs.NewMap1[components.Position](w),
		vel:    ecs.NewMap1[components.Velocity](w),
		force:  ecs.NewMap1[components.Force](w),
	}
}

// Update runs the spring system.
func (s *SpringSystem) Update() {
	query := s.filter.Query()
	for query.Next() {
		sp := query.Get()
		pa, pb := s.pos.Get(sp.A), s.pos.Get(sp.B)
		dx, dy := pb.X-pa.X, pb.Y-pa.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		ux, uy := dx/l, dy/l

		va, vb := s.vel.Get(sp.A), s.vel.Get(sp.B)
		separating := (vb.X-va.X)*ux + (vb.Y-va.Y)*uy

		// positive magnitude pulls the nodes together
		mag := sp.K*(l-sp.Rest) + sp.C*separating
		fa, fb := s.force.Get(sp.A), s.force.Get(sp.B)
		fa.X += mag * ux
		fa.Y += mag * uy
		fb.X -= mag * ux
		fb.Y -= mag * uy
	}
}

// IntegrationSystem advances nodes with semi-implicit Euler.
type IntegrationSystem struct {
	filter   ecs.Filter4[components.Position, components.Velocity, components.Force, components.Node]
	maxSpeed float64
}

// NewIntegrationSystem creates an integrator. A maxSpeed of 0 disables the
// speed check.
func NewIntegrationSystem(w *ecs.World, maxSpeed float64) *IntegrationSystem {
	return &IntegrationSystem{
		filter:   *ecs.NewFilter4[components.Position, components.Velocity, components.Force, components.Node](w),
		maxSpeed: maxSpeed,
	}
}

// Update integrates one substep of length dt. It returns ErrNonFinite or
// ErrOverspeed if any node ends up in an invalid state; all nodes are
// still advanced.
func (s *IntegrationSystem) Update(dt float64) error {
	var err error
	limit := s.maxSpeed * s.maxSpeed

	query := s.filter.Query()
	for query.Next() {
		pos, vel, f, node := query.Get()
		vel.X += f.X / node.Mass * dt
		vel.Y += f.Y / node.Mass * dt
		pos.X += vel.X * dt
		pos.Y += vel.Y * dt

		if err != nil {
			continue
		}
		speed2 := vel.X*vel.X + vel.Y*vel.Y
		switch {
		case math.IsNaN(speed2) || math.IsInf(speed2, 0) || math.IsNaN(pos.X+pos.Y) || math.IsInf(pos.X+pos.Y, 0):
			err = ErrNonFinite
		case limit > 0 && speed2 > limit:
			err = ErrOverspeed
		}
	}
	return err
}

// GroundSystem pushes nodes out of the ground and applies contact friction.
type GroundSystem struct {
	filter ecs.Filter3[components.Position, components.Velocity, components.Node]
	ground Ground
}

// NewGroundSystem creates a ground contact system.
func NewGroundSystem(w *ecs.World, ground Ground) *GroundSystem {
	return &GroundSystem{
		filter: *ecs.NewFilter3[components.Position, components.Velocity, components.Node](w),
		ground: ground,
	}
}

// Update runs the ground system.
func (s *GroundSystem) Update() {
	query := s.filter.Query()
	for query.Next() {
		pos, vel, node := query.Get()
		gy := s.ground.YAt(pos.X)
		node.Contact = pos.Y < gy
		if !node.Contact {
			continue
		}
		pos.Y = gy

		nx, ny := s.ground.Normal(pos.X)
		vn := vel.X*nx + vel.Y*ny
		if vn >= 0 {
			continue
		}
		vel.X -= vn * nx
		vel.Y -= vn * ny

		// friction impulse bounded by the normal impulse
		tx, ty := ny, -nx
		vt := vel.X*tx + vel.Y*ty
		drop := node.Friction * -vn
		if math.Abs(vt) <= drop {
			drop = math.Abs(vt)
		}
		drop = math.Copysign(drop, vt)
		vel.X -= drop * tx
		vel.Y -= drop * ty
	}
}
