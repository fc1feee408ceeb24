// Package criticality measures avalanches in voxel bodies and scores how
// closely their size and duration distributions follow a power law.
package criticality

import (
	"context"
	"math"

	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/sim"
	"github.com/pthm-cable/voxsoc/terrain"
)

// Measurement is the avalanche caused by pulsing one cell.
type Measurement struct {
	Cell     int  `json:"cell" csv:"cell"`         // Flat index of the pulsed cell
	Spatial  int  `json:"spatial" csv:"spatial"`   // Distinct voxels active at any step
	Temporal int  `json:"temporal" csv:"temporal"` // Consecutive steps with activity
	Failed   bool `json:"failed" csv:"failed"`     // Simulation went unstable
}

// Detector runs one robot and measures the avalanche that follows. It
// implements task.Task with metrics [spatial, temporal].
type Detector struct {
	FinalT    float64
	SettleT   float64 // Unmeasured time before the pulse starts
	Threshold float64
	Terrain   *terrain.Terrain
	Physics   config.PhysicsConfig

	// NewStepper overrides how a robot is simulated. Nil builds a sim.World.
	NewStepper func(robot *sim.Robot) (sim.Stepper, error)
}

// NewDetector builds a detector on flat ground from cfg.
func NewDetector(cfg *config.Config) *Detector {
	return &Detector{
		FinalT:    cfg.Criticality.FinalT,
		SettleT:   cfg.Criticality.SettleT,
		Threshold: cfg.Criticality.Threshold,
		Terrain:   terrain.Flat(),
		Physics:   cfg.Physics,
	}
}

// Name implements task.Task.
func (d *Detector) Name() string { return "criticality" }

// Run implements task.Task.
func (d *Detector) Run(ctx context.Context, robot *sim.Robot) ([]float64, error) {
	spatial, temporal, err := d.Detect(ctx, robot)
	if err != nil {
		return nil, err
	}
	return []float64{float64(spatial), float64(temporal)}, nil
}

// Detect first steps the robot unobserved for SettleT, then measures until no
// voxel's area ratio changes by more than Threshold between two consecutive
// steps, or until FinalT more seconds have passed. It returns the number of
// distinct voxels that were ever active and the number of steps with at
// least one active voxel.
func (d *Detector) Detect(ctx context.Context, robot *sim.Robot) (spatial, temporal int, err error) {
	stepper, err := d.stepper(robot)
	if err != nil {
		return 0, 0, err
	}

	var previous []float64
	var active []bool
	err = sim.Run(ctx, stepper, d.SettleT+d.FinalT, func(t float64, current []float64) bool {
		if t <= d.SettleT {
			previous = current
			return true
		}
		if previous != nil {
			if active == nil {
				active = make([]bool, len(current))
			}
			fired := false
			for i := range current {
				if math.Abs(current[i]-previous[i]) > d.Threshold {
					active[i] = true
					fired = true
				}
			}
			if !fired {
				return false
			}
			temporal++
		}
		previous = current
		return true
	})
	if err != nil {
		return 0, 0, err
	}

	for _, a := range active {
		if a {
			spatial++
		}
	}
	return spatial, temporal, nil
}

func (d *Detector) stepper(robot *sim.Robot) (sim.Stepper, error) {
	if d.NewStepper != nil {
		return d.NewStepper(robot)
	}
	return sim.New(robot, d.Terrain, d.Physics)
}
