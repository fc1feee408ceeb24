// Package sim runs voxel robots in a mass-spring world built on ark ECS.
package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/voxsoc/body"
	"github.com/pthm-cable/voxsoc/components"
	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/controller"
	"github.com/pthm-cable/voxsoc/systems"
	"github.com/pthm-cable/voxsoc/terrain"
)

// ErrUnstable marks a run whose state diverged. Callers treat it as a failed
// simulation, not a programming error.
var ErrUnstable = errors.New("simulation unstable")

// Robot pairs a body with the controller that drives it.
type Robot struct {
	Controller controller.Controller
	Body       *body.Body
}

// NewRobot creates a robot.
func NewRobot(c controller.Controller, b *body.Body) *Robot {
	return &Robot{Controller: c, Body: b}
}

// Stepper advances a simulation one observable step at a time.
type Stepper interface {
	// Step advances by one time increment and returns the area ratio of
	// every live voxel in flat-index order.
	Step() ([]float64, error)
	// Time returns the elapsed simulated time.
	Time() float64
}

// World is one robot on one terrain. It is not safe for concurrent use;
// build one World per run.
type World struct {
	world  *ecs.World
	robot  *Robot
	ground *terrain.Terrain
	cfg    config.PhysicsConfig

	steps int
	t     float64
	subDT float64

	nodes  []ecs.Entity
	voxels []ecs.Entity // flat-index order

	posMap   *ecs.Map1[components.Position]
	voxelMap *ecs.Map1[components.Voxel]

	forces    *systems.ForceSystem
	springs   *systems.SpringSystem
	integrate *systems.IntegrationSystem
	contact   *systems.GroundSystem
	actuation *systems.ActuationSystem
	areas     *systems.AreaSystem

	sensing controller.Sensing
}

// New builds a world holding robot on ground. The body's left edge is
// placed at ground.StartX() and its lowest node cfg.DropHeight above the
// ground. The robot's body is only read.
func New(robot *Robot, ground *terrain.Terrain, cfg config.PhysicsConfig) (*World, error) {
	if robot == nil || robot.Body == nil || robot.Body.Count() == 0 {
		return nil, body.ErrEmptyBody
	}
	if cfg.DT <= 0 {
		return nil, fmt.Errorf("physics dt must be positive, got %v", cfg.DT)
	}
	substeps := max(cfg.Substeps, 1)

	w := &World{
		world:  ecs.NewWorld(),
		robot:  robot,
		ground: ground,
		cfg:    cfg,
		subDT:  cfg.DT / float64(substeps),
	}
	w.cfg.Substeps = substeps
	w.posMap = ecs.NewMap1[components.Position](w.world)
	w.voxelMap = ecs.NewMap1[components.Voxel](w.world)

	w.build()

	w.forces = systems.NewForceSystem(w.world, cfg.Gravity)
	w.springs = systems.NewSpringSystem(w.world)
	w.integrate = systems.NewIntegrationSystem(w.world, cfg.MaxSpeed)
	w.contact = systems.NewGroundSystem(w.world, ground)
	w.actuation = systems.NewActuationSystem(w.world)
	w.areas = systems.NewAreaSystem(w.world)

	if s, ok := robot.Controller.(controller.Sensing); ok {
		w.sensing = s
	}
	w.areas.Update()
	return w, nil
}

// nodeShare accumulates what each voxel contributes to a shared corner.
type nodeShare struct {
	used     bool
	mass     float64
	damping  float64
	friction float64
	voxels   int
}

// build creates node, spring and voxel entities for every live cell.
func (w *World) build() {
	b := w.robot.Body
	bw, bh := b.W(), b.H()
	lattice := func(cx, cy int) int { return cx*(bh+1) + cy }

	shares := make([]nodeShare, (bw+1)*(bh+1))
	side := 0.0
	b.Each(func(x, y int, m *body.Material) {
		if m == nil {
			return
		}
		side = math.Max(side, m.SideLength)
		for _, c := range cornerOffsets {
			s := &shares[lattice(x+c[0], y+c[1])]
			s.used = true
			s.mass += m.Mass / 4
			s.damping += m.LinearDamping
			s.friction += m.Friction
			s.voxels++
		}
	})

	ox, oy := w.placement(shares, lattice, side)

	nodeMapper := ecs.NewMap4[components.Position, components.Velocity, components.Force, components.Node](w.world)
	nodeAt := make([]ecs.Entity, len(shares))
	for cx := 0; cx <= bw; cx++ {
		for cy := 0; cy <= bh; cy++ {
			i := lattice(cx, cy)
			s := shares[i]
			if !s.used {
				continue
			}
			pos := components.Position{X: ox + float64(cx)*side, Y: oy + float64(cy)*side}
			vel := components.Velocity{}
			force := components.Force{}
			node := components.Node{
				Mass:     s.mass,
				Damping:  s.damping / float64(s.voxels),
				Friction: s.friction / float64(s.voxels),
			}
			nodeAt[i] = nodeMapper.NewEntity(&pos, &vel, &force, &node)
			w.nodes = append(w.nodes, nodeAt[i])
		}
	}

	springMapper := ecs.NewMap1[components.Spring](w.world)
	voxelMapper := ecs.NewMap1[components.Voxel](w.world)
	for x := 0; x < bw; x++ {
		for y := 0; y < bh; y++ {
			m, ok := b.Get(x, y)
			if !ok || m == nil {
				continue
			}
			vox := components.Voxel{
				X:         x,
				Y:         y,
				Index:     b.Index(x, y),
				RestArea:  side * side,
				AreaRatio: 1,
				MaxDelta:  m.AreaRatioMaxDelta,
			}
			for ci, c := range cornerOffsets {
				vox.Corners[ci] = nodeAt[lattice(x+c[0], y+c[1])]
			}

			nodeMass := m.Mass / 4
			omega := 2 * math.Pi * m.SpringF
			k := nodeMass * omega * omega
			damp := 2 * m.SpringD * math.Sqrt(k*nodeMass)
			for si, pair := range springPairs {
				kind, rest := components.SpringSide, side
				if si >= 4 {
					kind, rest = components.SpringDiagonal, side*math.Sqrt2
				}
				sp := components.Spring{
					A:        vox.Corners[pair[0]],
					B:        vox.Corners[pair[1]],
					Kind:     kind,
					BaseRest: rest,
					Rest:     rest,
					K:        k,
					C:        damp,
				}
				vox.Springs[si] = springMapper.NewEntity(&sp)
			}
			w.voxels = append(w.voxels, voxelMapper.NewEntity(&vox))
		}
	}
}

// cornerOffsets lists lattice offsets in Voxel.Corners order.
var cornerOffsets = [4][2]int{
	components.CornerBottomLeft:  {0, 0},
	components.CornerBottomRight: {1, 0},
	components.CornerTopRight:    {1, 1},
	components.CornerTopLeft:     {0, 1},
}

// springPairs lists corner pairs: four sides, then two diagonals.
var springPairs = [6][2]int{
	{components.CornerBottomLeft, components.CornerBottomRight},
	{components.CornerBottomRight, components.CornerTopRight},
	{components.CornerTopRight, components.CornerTopLeft},
	{components.CornerTopLeft, components.CornerBottomLeft},
	{components.CornerBottomLeft, components.CornerTopRight},
	{components.CornerBottomRight, components.CornerTopLeft},
}

// placement returns the world position of lattice corner (0, 0).
func (w *World) placement(shares []nodeShare, lattice func(cx, cy int) int, side float64) (ox, oy float64) {
	b := w.robot.Body
	minX, _, _, _, _ := b.Bounds()
	ox = w.ground.StartX() - float64(minX)*side

	gap := math.Inf(1)
	for cx := 0; cx <= b.W(); cx++ {
		for cy := 0; cy <= b.H(); cy++ {
			if !shares[lattice(cx, cy)].used {
				continue
			}
			x := ox + float64(cx)*side
			gap = math.Min(gap, float64(cy)*side-w.ground.YAt(x))
		}
	}
	return ox, w.cfg.DropHeight - gap
}

// Time returns the elapsed simulated time.
func (w *World) Time() float64 { return w.t }

// Robot returns the simulated robot.
func (w *World) Robot() *Robot { return w.robot }

// Step advances the world by one dt, then lets the controller act at the new
// time. The returned slice is freshly allocated.
func (w *World) Step() ([]float64, error) {
	for i := 0; i < w.cfg.Substeps; i++ {
		w.forces.Update()
		w.springs.Update()
		if err := w.integrate.Update(w.subDT); err != nil {
			return nil, fmt.Errorf("%w at t=%.3fs: %w", ErrUnstable, w.t, err)
		}
		w.contact.Update()
	}
	w.steps++
	w.t = float64(w.steps) * w.cfg.DT

	w.areas.Update()
	ratios := w.AreaRatios()
	w.act(ratios)
	return ratios, nil
}

// act samples the controller for every voxel and updates rest lengths.
func (w *World) act(ratios []float64) {
	if w.sensing != nil {
		w.sensing.Sense(w.t, ratios)
	}
	for _, e := range w.voxels {
		v := w.voxelMap.Get(e)
		v.Actuation = clamp(w.robot.Controller.Signal(v.X, v.Y, w.t))
	}
	w.actuation.Update()
}

// AreaRatios returns the current area ratio of every live voxel in
// flat-index order.
func (w *World) AreaRatios() []float64 {
	out := make([]float64, len(w.voxels))
	for i, e := range w.voxels {
		out[i] = w.voxelMap.Get(e).AreaRatio
	}
	return out
}

// Center returns the mean position of all nodes.
func (w *World) Center() (x, y float64) {
	for _, e := range w.nodes {
		p := w.posMap.Get(e)
		x += p.X
		y += p.Y
	}
	n := float64(len(w.nodes))
	return x / n, y / n
}

// Extent returns the horizontal span of the body's nodes.
func (w *World) Extent() (minX, maxX float64) {
	minX, maxX = math.Inf(1), math.Inf(-1)
	for _, e := range w.nodes {
		p := w.posMap.Get(e)
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
	}
	return minX, maxX
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
