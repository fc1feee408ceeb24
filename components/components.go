// Package components defines ECS components for the mass-spring world.
package components

import "github.com/mlange-42/ark/ecs"

// Position is a lattice node's world position. Y points up.
type Position struct {
	X, Y float64
}

// Velocity is a lattice node's velocity.
type Velocity struct {
	X, Y float64
}

// Force accumulates the force on a node during one substep.
type Force struct {
	X, Y float64
}

// Node holds per-node mass properties. Corner nodes are shared between
// adjacent voxels, so Mass is the sum of their shares.
type Node struct {
	Mass     float64
	Damping  float64 // Linear velocity damping per second
	Friction float64 // Ground friction coefficient
	Contact  bool    // Touching the ground after the last substep
}

// SpringKind tells side springs from diagonal ones.
type SpringKind uint8

const (
	SpringSide SpringKind = iota
	SpringDiagonal
)

// Spring connects two nodes with a damped linear spring.
type Spring struct {
	A, B     ecs.Entity
	Kind     SpringKind
	BaseRest float64 // Rest length with no actuation
	Rest     float64 // Current (actuated) rest length
	K        float64 // Stiffness
	C        float64 // Damping coefficient
}

// Corner order inside Voxel.Corners, counter-clockwise.
const (
	CornerBottomLeft = iota
	CornerBottomRight
	CornerTopRight
	CornerTopLeft
)

// Voxel is one live cell of the body grid.
type Voxel struct {
	X, Y      int           // Grid coordinates
	Index     int           // Flat index X*H + Y
	Corners   [4]ecs.Entity // Node entities, counter-clockwise from bottom left
	Springs   [6]ecs.Entity // Four sides then two diagonals
	RestArea  float64
	AreaRatio float64 // Current area over rest area
	Actuation float64 // Last controller signal in [-1, 1]
	MaxDelta  float64 // Area ratio change at full actuation
}
