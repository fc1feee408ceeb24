package main

import (
	"fmt"

	"github.com/pthm-cable/voxsoc/body"
	"github.com/pthm-cable/voxsoc/controller"
	"github.com/pthm-cable/voxsoc/neural"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters and turns a
// parameter vector into a controller for the body being optimized.
type ParamVector struct {
	Specs []ParamSpec
	Build func(values []float64) (controller.Controller, error)
}

// NewParamVector creates the parameters of the given controller kind.
//
// phase: one sine phase in [0, 1] per grid cell, indexed x + y*W.
// neural: all weights and biases of a closed-loop network in [-3, 3].
func NewParamVector(kind string, b *body.Body, hidden []int) (*ParamVector, error) {
	switch kind {
	case "phase":
		w, h := b.W(), b.H()
		specs := make([]ParamSpec, w*h)
		for i := range specs {
			specs[i] = ParamSpec{Name: fmt.Sprintf("phase_%d_%d", i%w, i/w), Min: 0, Max: 1, Default: 0.5}
		}
		return &ParamVector{
			Specs: specs,
			Build: func(values []float64) (controller.Controller, error) {
				return controller.PhaseSine(w, h, values), nil
			},
		}, nil

	case "neural":
		cells := b.Occupied()
		sizes := append([]int{controller.ClosedInputs(len(cells))}, hidden...)
		sizes = append(sizes, len(cells))
		specs := make([]ParamSpec, neural.NumParams(sizes))
		for i := range specs {
			specs[i] = ParamSpec{Name: fmt.Sprintf("w%d", i), Min: -3, Max: 3, Default: 0}
		}
		return &ParamVector{
			Specs: specs,
			Build: func(values []float64) (controller.Controller, error) {
				nn, err := neural.New(sizes)
				if err != nil {
					return nil, err
				}
				if err := nn.SetParams(values); err != nil {
					return nil, err
				}
				return controller.NewClosed(b.W(), b.H(), cells, nn), nil
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown controller kind %q", kind)
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}
