package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/voxsoc/body"
	"github.com/pthm-cable/voxsoc/sim"
	"github.com/pthm-cable/voxsoc/task"
)

// FitnessEvaluator runs a task with controllers built from parameter
// vectors and computes fitness.
type FitnessEvaluator struct {
	ctx    context.Context
	params *ParamVector
	body   *body.Body
	task   task.Task

	// Best run tracking
	mu          sync.Mutex
	bestMetric  float64
	bestParams  []float64
	lastMetric  float64
	unstable    int
	evaluations int
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(ctx context.Context, params *ParamVector, b *body.Body, t task.Task) *FitnessEvaluator {
	return &FitnessEvaluator{
		ctx:        ctx,
		params:     params,
		body:       b,
		task:       t,
		bestMetric: math.Inf(-1),
	}
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// Fitness is the negated first task metric. Unstable simulations and
// failed runs score 0.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	clamped := fe.params.Clamp(x)
	metric := fe.metric(clamped)

	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.evaluations++
	fe.lastMetric = metric
	if metric > fe.bestMetric {
		fe.bestMetric = metric
		fe.bestParams = clamped
	}
	return -metric
}

func (fe *FitnessEvaluator) metric(values []float64) float64 {
	c, err := fe.params.Build(values)
	if err != nil {
		slog.Warn("building controller failed", "error", err)
		return 0
	}

	metrics, err := fe.task.Run(fe.ctx, sim.NewRobot(c, fe.body.Clone()))
	switch {
	case errors.Is(err, sim.ErrUnstable):
		fe.mu.Lock()
		fe.unstable++
		fe.mu.Unlock()
		return 0
	case err != nil:
		slog.Warn("task failed", "task", fe.task.Name(), "error", err)
		return 0
	case len(metrics) == 0 || math.IsNaN(metrics[0]) || math.IsInf(metrics[0], 0):
		return 0
	}
	return metrics[0]
}

// Best returns the best metric and the clamped parameters that reached it.
func (fe *FitnessEvaluator) Best() (float64, []float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestMetric, append([]float64(nil), fe.bestParams...)
}

// LastMetric returns the task metric from the most recent evaluation.
func (fe *FitnessEvaluator) LastMetric() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMetric
}

// Unstable returns how many evaluations ended in an unstable simulation.
func (fe *FitnessEvaluator) Unstable() int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.unstable
}
