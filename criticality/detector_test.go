package criticality

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pthm-cable/voxsoc/body"
	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/controller"
	"github.com/pthm-cable/voxsoc/sim"
)

// scripted replays fixed area-ratio frames and counts how often it is
// stepped.
type scripted struct {
	frames [][]float64
	dt     float64
	steps  int
	err    error
}

func (s *scripted) Step() ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	f := s.frames[min(s.steps, len(s.frames)-1)]
	s.steps++
	return append([]float64(nil), f...), nil
}

func (s *scripted) Time() float64 { return float64(s.steps) * s.dt }

func scriptedDetector(s *scripted, finalT float64) *Detector {
	return &Detector{
		FinalT:    finalT,
		Threshold: 0.01,
		NewStepper: func(*sim.Robot) (sim.Stepper, error) {
			return s, nil
		},
	}
}

// ---------- detector ----------

func TestDetectEarlyTermination(t *testing.T) {
	s := &scripted{dt: 0.1, frames: [][]float64{
		{1, 1, 1},
		{1.1, 1, 1},   // cell 0 active
		{1.1, 1.2, 1}, // cell 1 active
		{1.1, 1.2, 1}, // quiet: stop here
		{2, 2, 2},     // never reached
	}}
	d := scriptedDetector(s, 10)

	spatial, temporal, err := d.Detect(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if temporal != 2 {
		t.Errorf("temporal = %d, want 2", temporal)
	}
	if spatial != 2 {
		t.Errorf("spatial = %d, want 2", spatial)
	}
	if s.steps != 4 {
		t.Errorf("stepped %d times, want 4 (no steps after the quiet frame)", s.steps)
	}
}

func TestDetectHorizon(t *testing.T) {
	// every frame differs, so only the horizon stops the run
	frames := make([][]float64, 20)
	for i := range frames {
		frames[i] = []float64{float64(i), 0}
	}
	s := &scripted{dt: 0.5, frames: frames}
	d := scriptedDetector(s, 2)

	spatial, temporal, err := d.Detect(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	// 4 steps reach t=2; the first has no previous frame
	if s.steps != 4 || temporal != 3 {
		t.Errorf("steps = %d, temporal = %d, want 4 and 3", s.steps, temporal)
	}
	if spatial != 1 {
		t.Errorf("spatial = %d, want 1", spatial)
	}
}

func TestDetectThresholdIsStrict(t *testing.T) {
	// 0.75 - 0.5 is exactly the threshold, which is not activity
	s := &scripted{dt: 0.1, frames: [][]float64{{0.5}, {0.75}, {2}}}
	d := scriptedDetector(s, 10)
	d.Threshold = 0.25

	spatial, temporal, err := d.Detect(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if spatial != 0 || temporal != 0 {
		t.Errorf("spatial = %d, temporal = %d, want 0 and 0", spatial, temporal)
	}
	if s.steps != 2 {
		t.Errorf("stepped %d times, want 2", s.steps)
	}
}

func TestDetectIgnoresSettling(t *testing.T) {
	s := &scripted{dt: 0.1, frames: [][]float64{
		{0},   // settling
		{5},   // settling
		{5.5}, // measured: active
		{5.5}, // quiet: stop here
	}}
	d := scriptedDetector(s, 10)
	d.SettleT = 0.25

	spatial, temporal, err := d.Detect(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if spatial != 1 || temporal != 1 {
		t.Errorf("spatial = %d, temporal = %d, want 1 and 1", spatial, temporal)
	}
	if s.steps != 4 {
		t.Errorf("stepped %d times, want 4", s.steps)
	}
}

func TestDetectSettleExtendsHorizon(t *testing.T) {
	frames := make([][]float64, 20)
	for i := range frames {
		frames[i] = []float64{float64(i)}
	}
	s := &scripted{dt: 0.5, frames: frames}
	d := scriptedDetector(s, 1)
	d.SettleT = 1

	_, temporal, err := d.Detect(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.steps != 4 || temporal != 2 {
		t.Errorf("steps = %d, temporal = %d, want 4 and 2", s.steps, temporal)
	}
}

func TestDetectPropagatesErrors(t *testing.T) {
	s := &scripted{dt: 0.1, err: fmt.Errorf("%w: boom", sim.ErrUnstable)}
	d := scriptedDetector(s, 1)
	_, _, err := d.Detect(context.Background(), nil)
	if !errors.Is(err, sim.ErrUnstable) {
		t.Errorf("err = %v, want ErrUnstable", err)
	}
}

func TestDetectorAsTask(t *testing.T) {
	s := &scripted{dt: 0.1, frames: [][]float64{{1, 1}, {1.5, 1}, {1.5, 1}}}
	d := scriptedDetector(s, 10)
	out, err := d.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name() != "criticality" || len(out) != 2 || out[0] != 1 || out[1] != 1 {
		t.Errorf("Run = %v, want [1 1]", out)
	}
}

// ---------- evaluator ----------

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Criticality.FinalT = 2
	return cfg
}

func TestEvaluateTooFewCells(t *testing.T) {
	cfg := testConfig()
	ev := NewEvaluator(cfg)
	mat := body.MaterialFromConfig(cfg.Material)

	for _, b := range []*body.Body{nil, body.New(3, 3), body.Filled(1, 1, mat)} {
		r, err := ev.Evaluate(context.Background(), b)
		if err != nil {
			t.Fatal(err)
		}
		if r.Fitness != 0 || r.Reason != ReasonTooFewCells {
			t.Errorf("fitness = %v, reason = %q, want 0 and %q", r.Fitness, r.Reason, ReasonTooFewCells)
		}
	}
}

func TestEvaluateUnstableRunsAreFailures(t *testing.T) {
	cfg := testConfig()
	ev := NewEvaluator(cfg)
	ev.Detector.NewStepper = func(*sim.Robot) (sim.Stepper, error) {
		return &scripted{dt: 0.1, err: sim.ErrUnstable}, nil
	}
	b := body.Filled(2, 2, body.MaterialFromConfig(cfg.Material))

	r, err := ev.Evaluate(context.Background(), b)
	if err != nil {
		t.Fatalf("unstable runs must not abort evaluation: %v", err)
	}
	if r.Failures != 4 || r.Fitness != 0 {
		t.Errorf("failures = %d, fitness = %v, want 4 and 0", r.Failures, r.Fitness)
	}
	for _, m := range r.Measurements {
		if !m.Failed || m.Spatial != 0 || m.Temporal != 0 {
			t.Errorf("measurement %+v, want a failed (0, 0)", m)
		}
	}
}

func TestEvaluatePulseStartsAfterSettling(t *testing.T) {
	cfg := testConfig()
	cfg.Criticality.SettleT = 3
	ev := NewEvaluator(cfg)
	ev.Detector.NewStepper = func(robot *sim.Robot) (sim.Stepper, error) {
		p, ok := robot.Controller.(*controller.Pulse)
		if !ok || p.Start != 3 {
			t.Errorf("controller = %+v, want a pulse starting at 3", robot.Controller)
		}
		return &scripted{dt: 0.1, frames: [][]float64{{1, 1}}}, nil
	}
	b := body.Filled(2, 1, body.MaterialFromConfig(cfg.Material))
	if _, err := ev.Evaluate(context.Background(), b); err != nil {
		t.Fatal(err)
	}
}

func TestEvaluateZeroPulseDuration(t *testing.T) {
	cfg := testConfig()
	ev := NewEvaluator(cfg)
	ev.PulseDuration = 0
	ev.Detector.NewStepper = func(*sim.Robot) (sim.Stepper, error) {
		t.Error("degenerate pulses must not be simulated")
		return nil, errors.New("unexpected simulation")
	}
	b := body.Filled(2, 1, body.MaterialFromConfig(cfg.Material))
	r, err := ev.Evaluate(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if r.Fitness != 0 {
		t.Errorf("fitness = %v, want 0", r.Fitness)
	}
}

func TestEvaluateUnreachableThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Criticality.Threshold = 10
	b := body.Filled(2, 2, body.MaterialFromConfig(cfg.Material))

	r, err := NewEvaluator(cfg).Evaluate(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if r.Fitness != 0 {
		t.Errorf("fitness = %v, want 0", r.Fitness)
	}
	for _, m := range r.Measurements {
		if m.Temporal != 0 || m.Spatial != 0 {
			t.Errorf("cell %d: (%d, %d), want (0, 0)", m.Cell, m.Spatial, m.Temporal)
		}
	}
}

func TestEvaluateTwoCellBody(t *testing.T) {
	cfg := testConfig()
	b := body.Filled(2, 1, body.MaterialFromConfig(cfg.Material))

	r, err := NewEvaluator(cfg).Evaluate(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Measurements) != 2 {
		t.Fatalf("got %d measurements, want 2", len(r.Measurements))
	}
	for _, m := range r.Measurements {
		if m.Spatial < 0 || m.Spatial > b.Count() || m.Temporal < 0 {
			t.Errorf("cell %d: spatial %d, temporal %d out of range", m.Cell, m.Spatial, m.Temporal)
		}
	}
	if r.Fitness < 0 || r.Fitness != r.Fitness {
		t.Errorf("fitness = %v, want a finite non-negative value", r.Fitness)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	cfg := testConfig()
	cfg.Criticality.Workers = 3
	b := body.Filled(3, 1, body.MaterialFromConfig(cfg.Material))
	ev := NewEvaluator(cfg)

	a, err := ev.Evaluate(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	c, err := ev.Evaluate(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if a.Fitness != c.Fitness {
		t.Errorf("fitness differs: %v vs %v", a.Fitness, c.Fitness)
	}
	for i := range a.Measurements {
		if a.Measurements[i] != c.Measurements[i] {
			t.Errorf("measurement %d differs: %+v vs %+v", i, a.Measurements[i], c.Measurements[i])
		}
	}
}

func TestEvaluateCancelled(t *testing.T) {
	cfg := testConfig()
	b := body.Filled(2, 1, body.MaterialFromConfig(cfg.Material))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEvaluator(cfg).Evaluate(ctx, b); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
