package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// GenerationStats summarizes one iteration of a search.
type GenerationStats struct {
	Iteration   int     `csv:"iteration"`
	Evaluations int     `csv:"evaluations"`
	Best        float64 `csv:"best"`
	Mean        float64 `csv:"mean"`
	Std         float64 `csv:"std"`
	P10         float64 `csv:"p10"`
	P50         float64 `csv:"p50"`
	P90         float64 `csv:"p90"`
	Distinct    int     `csv:"distinct"`   // Distinct genomes in the population
	CacheHits   int64   `csv:"cache_hits"` // Cumulative fitness cache hits
	BestVoxels  int     `csv:"best_voxels"`
}

// NewGenerationStats computes fitness statistics for a population. genomes
// are the population's genome keys, used for the diversity count.
func NewGenerationStats(iteration, evaluations int, fitness []float64, genomes []string) GenerationStats {
	s := GenerationStats{Iteration: iteration, Evaluations: evaluations}
	if len(fitness) == 0 {
		return s
	}
	s.Mean, s.Std, s.P10, s.P50, s.P90 = ComputeFitnessStats(fitness)
	s.Best = fitness[0]
	for _, f := range fitness {
		s.Best = max(s.Best, f)
	}
	distinct := make(map[string]struct{}, len(genomes))
	for _, g := range genomes {
		distinct[g] = struct{}{}
	}
	s.Distinct = len(distinct)
	return s
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeFitnessStats calculates the mean, population standard deviation
// and percentiles of fitness values.
func ComputeFitnessStats(values []float64) (mean, std, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}
	mean, std = stat.PopMeanStdDev(values, nil)

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)
	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("iteration", s.Iteration),
		slog.Int("evaluations", s.Evaluations),
		slog.Float64("best", s.Best),
		slog.Float64("mean", s.Mean),
		slog.Float64("std", s.Std),
		slog.Float64("p50", s.P50),
		slog.Int("distinct", s.Distinct),
		slog.Int64("cache_hits", s.CacheHits),
		slog.Int("best_voxels", s.BestVoxels),
	)
}

// LogStats logs the generation stats using slog.
func (s GenerationStats) LogStats() {
	slog.Info("generation", "stats", s)
}
