package task

import (
	"context"
	"math"
	"testing"

	"github.com/pthm-cable/voxsoc/body"
	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/controller"
	"github.com/pthm-cable/voxsoc/sim"
)

func TestLookup(t *testing.T) {
	cfg := config.Defaults()
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"locomotion", "locomotion-flat", false},
		{"hiking", "locomotion-hiking", false},
		{"stairway", "locomotion-stairway", false},
		{"uneven5", "locomotion-uneven5", false},
		{"jump", "jump-bowl", false},
		{"bowl", "", true},
		{"swim", "", true},
		{"unevenZ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lookup(tt.name, cfg)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got task %s", got.Name())
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if got.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", got.Name(), tt.want)
			}
		})
	}
}

func TestLocomotionIdleRobotBarelyMoves(t *testing.T) {
	cfg := config.Defaults()
	cfg.Task.FinalT = 2
	tk, err := Lookup("locomotion", cfg)
	if err != nil {
		t.Fatal(err)
	}
	b := body.Filled(2, 2, body.MaterialFromConfig(cfg.Material))
	idle := controller.Func(func(x, y int, t float64) float64 { return 0 })

	out, err := tk.Run(context.Background(), sim.NewRobot(idle, b))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d metrics, want 1", len(out))
	}
	if math.Abs(out[0]) > 0.05 {
		t.Errorf("idle robot relative velocity = %v, want about 0", out[0])
	}
}

func TestJumpReportsNonNegativeHeight(t *testing.T) {
	cfg := config.Defaults()
	cfg.Task.FinalT = 1
	tk, err := Lookup("jump", cfg)
	if err != nil {
		t.Fatal(err)
	}
	b := body.Filled(2, 1, body.MaterialFromConfig(cfg.Material))
	gait := controller.PhaseSine(2, 1, []float64{0, 1})

	out, err := tk.Run(context.Background(), sim.NewRobot(gait, b))
	if err != nil {
		t.Fatal(err)
	}
	// the first sample is taken after one step of free fall
	if out[0] > 1 || math.IsNaN(out[0]) {
		t.Errorf("center jump = %v, want a finite value below the drop height", out[0])
	}
}

func TestUnsupportedMetric(t *testing.T) {
	cfg := config.Defaults()
	tk, _ := Lookup("locomotion", cfg)
	loc := tk.(*Locomotion)
	loc.FinalT = 0.1
	loc.Metrics = []Metric{CenterJump}
	b := body.Filled(1, 1, body.MaterialFromConfig(cfg.Material))
	if _, err := loc.Run(context.Background(), sim.NewRobot(controller.Func(func(int, int, float64) float64 { return 0 }), b)); err == nil {
		t.Error("expected error for a metric locomotion does not measure")
	}
}
