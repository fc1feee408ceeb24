package criticality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/pthm-cable/voxsoc/body"
	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/controller"
	"github.com/pthm-cable/voxsoc/sim"
)

// Evaluator pulses every live cell of a body in turn and scores the
// resulting avalanche distributions.
type Evaluator struct {
	Detector      *Detector
	Scorer        Scorer
	PulseDuration float64
	Workers       int // Cells simulated concurrently; 1 is sequential
}

// NewEvaluator builds an evaluator from cfg.
func NewEvaluator(cfg *config.Config) *Evaluator {
	return &Evaluator{
		Detector:      NewDetector(cfg),
		Scorer:        NewScorer(cfg),
		PulseDuration: cfg.Criticality.PulseDuration,
		Workers:       cfg.Criticality.Workers,
	}
}

// Evaluate measures one avalanche per live cell and scores them. Bodies with
// fewer than two live cells score 0 without simulating. Unstable runs count
// as (0, 0) measurements flagged Failed. Setup and context errors are
// returned.
func (e *Evaluator) Evaluate(ctx context.Context, b *body.Body) (*Result, error) {
	if b == nil || b.Count() < 2 {
		return &Result{Reason: ReasonTooFewCells}, nil
	}

	cells := b.Occupied()
	ms := make([]Measurement, len(cells))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(max(e.Workers, 1))
	for k, cell := range cells {
		p.Go(func(ctx context.Context) error {
			m, err := e.measure(ctx, b, cell)
			if err != nil {
				return err
			}
			ms[k] = m
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	r := e.Scorer.Score(ms)
	slog.Debug("criticality evaluated",
		"cells", len(cells),
		"fitness", r.Fitness,
		"spatial_buckets", r.Spatial.Histogram.Distinct(),
		"temporal_buckets", r.Temporal.Histogram.Distinct(),
		"failures", r.Failures,
	)
	return r, nil
}

// measure pulses one cell on a fresh copy of b.
func (e *Evaluator) measure(ctx context.Context, b *body.Body, cell int) (Measurement, error) {
	m := Measurement{Cell: cell}
	pulse := controller.NewPulse(b.W(), b.H(), cell, e.PulseDuration)
	pulse.Start = e.Detector.SettleT
	if pulse.Degenerate() {
		return m, nil
	}

	spatial, temporal, err := e.Detector.Detect(ctx, sim.NewRobot(pulse, b.Clone()))
	switch {
	case errors.Is(err, sim.ErrUnstable):
		slog.Debug("pulse run unstable", "cell", cell, "err", err)
		m.Failed = true
		return m, nil
	case err != nil:
		return m, fmt.Errorf("cell %d: %w", cell, err)
	}
	m.Spatial, m.Temporal = spatial, temporal
	return m, nil
}

// Fitness evaluates b and returns only the fitness. Evaluation errors are
// logged and score 0.
func (e *Evaluator) Fitness(b *body.Body) float64 {
	r, err := e.Evaluate(context.Background(), b)
	if err != nil {
		slog.Warn("criticality evaluation failed", "err", err)
		return 0
	}
	return r.Fitness
}

// Evaluate scores b with the default physics and scoring settings and the
// given horizon, activity threshold and temporal bin size.
func Evaluate(ctx context.Context, b *body.Body, finalT, threshold float64, binSize int) (float64, error) {
	cfg := config.Defaults()
	cfg.Criticality.FinalT = finalT
	cfg.Criticality.Threshold = threshold
	cfg.Criticality.BinSize = binSize
	r, err := NewEvaluator(cfg).Evaluate(ctx, b)
	if err != nil {
		return 0, err
	}
	return r.Fitness, nil
}
