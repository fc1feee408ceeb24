// Package task defines what a robot is asked to do and how well it did.
package task

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/sim"
	"github.com/pthm-cable/voxsoc/terrain"
)

// Task runs a robot and reports one value per metric it was configured with.
type Task interface {
	Name() string
	Run(ctx context.Context, robot *sim.Robot) ([]float64, error)
}

// Metric names a scalar outcome of a task run.
type Metric string

const (
	TraveledX        Metric = "traveled_x"
	RelativeVelocity Metric = "relative_velocity"
	CenterJump       Metric = "center_jump"
)

// Locomotion measures how far a robot moves to the right.
type Locomotion struct {
	FinalT  float64
	Terrain *terrain.Terrain
	Physics config.PhysicsConfig
	Metrics []Metric
}

// Name implements Task.
func (l *Locomotion) Name() string { return "locomotion-" + l.Terrain.Name }

// Run implements Task.
func (l *Locomotion) Run(ctx context.Context, robot *sim.Robot) ([]float64, error) {
	w, err := sim.New(robot, l.Terrain, l.Physics)
	if err != nil {
		return nil, err
	}
	x0, _ := w.Center()
	minX, maxX := w.Extent()
	if err := sim.Run(ctx, w, l.FinalT, nil); err != nil {
		return nil, err
	}
	x1, _ := w.Center()
	traveled := x1 - x0

	out := make([]float64, len(l.Metrics))
	for i, m := range l.Metrics {
		switch m {
		case TraveledX:
			out[i] = traveled
		case RelativeVelocity:
			out[i] = traveled / l.FinalT / (maxX - minX)
		default:
			return nil, fmt.Errorf("locomotion: unsupported metric %q", m)
		}
	}
	return out, nil
}

// Jump measures how high a robot lifts its center of mass.
type Jump struct {
	FinalT  float64
	Terrain *terrain.Terrain
	Physics config.PhysicsConfig
	Metrics []Metric
}

// Name implements Task.
func (j *Jump) Name() string { return "jump-" + j.Terrain.Name }

// Run implements Task.
func (j *Jump) Run(ctx context.Context, robot *sim.Robot) ([]float64, error) {
	w, err := sim.New(robot, j.Terrain, j.Physics)
	if err != nil {
		return nil, err
	}
	_, y0 := w.Center()
	peak := math.Inf(-1)
	err = sim.Run(ctx, w, j.FinalT, func(t float64, ratios []float64) bool {
		_, y := w.Center()
		peak = math.Max(peak, y)
		return true
	})
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(j.Metrics))
	for i, m := range j.Metrics {
		switch m {
		case CenterJump:
			out[i] = peak - y0
		default:
			return nil, fmt.Errorf("jump: unsupported metric %q", m)
		}
	}
	return out, nil
}

// Lookup builds the named task from cfg. Known names are locomotion (flat
// ground), hiking, stairway, uneven<h>, hilly[-h-w-seed] and jump.
func Lookup(name string, cfg *config.Config) (Task, error) {
	finalT := cfg.Task.FinalT
	if name == "jump" {
		return &Jump{FinalT: finalT, Terrain: terrain.Bowl(), Physics: cfg.Physics, Metrics: []Metric{CenterJump}}, nil
	}

	ground := "flat"
	if name != "locomotion" {
		ground = name
	}
	if !isLocomotionGround(ground) {
		return nil, fmt.Errorf("unknown task %q", name)
	}
	tr, err := terrain.ByName(ground)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", name, err)
	}
	return &Locomotion{FinalT: finalT, Terrain: tr, Physics: cfg.Physics, Metrics: []Metric{RelativeVelocity}}, nil
}

func isLocomotionGround(name string) bool {
	switch {
	case name == "flat", name == "hiking", name == "stairway":
		return true
	case strings.HasPrefix(name, "uneven"), strings.HasPrefix(name, "hilly"):
		return true
	}
	return false
}
