package criticality

import (
	"math"

	"github.com/pthm-cable/voxsoc/config"
)

// Formula selects how fit quality is combined into a fitness.
type Formula string

const (
	// Canonical is R²_s + exp(-(0.9·min(ks_s, ks_t) + 0.1·mean(ks_s, ks_t)))².
	Canonical Formula = "canonical"
	// MeanR2 averages both R² values and does not square the exp term.
	MeanR2 Formula = "mean_r2"
	// DuplicatedKS is Canonical with ks_t replaced by ks_s.
	DuplicatedKS Formula = "duplicated_ks"
)

// KS statistic variants.
const (
	KSCumulative = "cumulative"
	KSTwoSample  = "two_sample"
)

// Reasons a body scores 0 without a fit.
const (
	ReasonTooFewCells    = "fewer than two live cells"
	ReasonDegenerateHist = "fewer than two distinct histogram buckets"
)

// Distribution is one axis (spatial or temporal) of a scored body.
type Distribution struct {
	Histogram Histogram `json:"histogram"`
	Points    []Point   `json:"points,omitempty"`
	Fit       Fit       `json:"fit"`
	KS        float64   `json:"ks"`
}

// Result carries a fitness together with everything it was computed from.
type Result struct {
	Fitness      float64       `json:"fitness"`
	Measurements []Measurement `json:"measurements"`
	Spatial      Distribution  `json:"spatial"`
	Temporal     Distribution  `json:"temporal"`
	Failures     int           `json:"failures"` // Measurements from unstable runs
	Reason       string        `json:"reason,omitempty"`
}

// Scorer turns measurements into a fitness.
type Scorer struct {
	Formula  Formula
	LogBase  string // "e" or "10"
	KS       string // KSCumulative or KSTwoSample
	SortedKS bool
	BinSize  int
}

// NewScorer builds a scorer from cfg.
func NewScorer(cfg *config.Config) Scorer {
	return Scorer{
		Formula:  Formula(cfg.Scoring.Formula),
		LogBase:  cfg.Scoring.LogBase,
		KS:       cfg.Scoring.KS,
		SortedKS: cfg.Scoring.SortedKS,
		BinSize:  cfg.Criticality.BinSize,
	}
}

// Score builds both histograms, fits them in log-log space and combines the
// fit quality into a fitness. The result depends only on the multiset of
// measurements, not on their order.
func (s Scorer) Score(ms []Measurement) *Result {
	r := &Result{
		Measurements: ms,
		Spatial:      Distribution{Histogram: SpatialHistogram(ms)},
		Temporal:     Distribution{Histogram: TemporalHistogram(ms, s.BinSize)},
	}
	for _, m := range ms {
		if m.Failed {
			r.Failures++
		}
	}
	if r.Spatial.Histogram.Distinct() < 2 || r.Temporal.Histogram.Distinct() < 2 {
		r.Reason = ReasonDegenerateHist
		return r
	}

	log := math.Log
	if s.LogBase == "10" {
		log = math.Log10
	}
	r.Spatial.Points = LogLog(r.Spatial.Histogram, 0, log)
	r.Temporal.Points = LogLog(r.Temporal.Histogram, 1, log)
	for _, d := range []*Distribution{&r.Spatial, &r.Temporal} {
		d.Fit = FitLine(d.Points)
		d.KS = s.ks(d.Points, d.Fit)
	}

	r.Fitness = s.combine(r.Spatial, r.Temporal)
	return r
}

func (s Scorer) ks(pts []Point, fit Fit) float64 {
	if s.KS == KSTwoSample {
		return TwoSampleKS(pts, fit)
	}
	return CumulativeKS(pts, fit, s.SortedKS)
}

func (s Scorer) combine(spatial, temporal Distribution) float64 {
	ksS, ksT := spatial.KS, temporal.KS
	if s.Formula == DuplicatedKS {
		ksT = ksS
	}
	d := math.Exp(-(0.9*math.Min(ksS, ksT) + 0.1*(ksS+ksT)/2))
	if math.IsNaN(d) {
		d = 0
	}

	var f float64
	switch s.Formula {
	case MeanR2:
		f = (spatial.Fit.R2+temporal.Fit.R2)/2 + d
	default:
		f = spatial.Fit.R2 + d*d
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
