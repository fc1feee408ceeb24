package telemetry

import (
	"log/slog"
	"time"
)

// Phase names of one GA iteration.
const (
	PhaseEvolve  = "evolve"  // breeding and fitness evaluation
	PhaseArchive = "archive" // storage and hall of fame
	PhaseReport  = "report"  // stats, logs and CSV rows
)

var phases = []string{PhaseEvolve, PhaseArchive, PhaseReport}

// PerfSample holds timing data for a single iteration.
type PerfSample struct {
	Duration    time.Duration
	Evaluations int
	Phases      map[string]time.Duration
}

// PerfCollector tracks iteration timing over a rolling window.
// It is not safe for concurrent use.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	start         time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a new performance collector averaging over the
// last windowSize iterations.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 10
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// Start begins timing a new iteration.
func (p *PerfCollector) Start() {
	p.start = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase, ending the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// End finishes the current iteration, which ran evaluations fitness
// evaluations, and records the sample.
func (p *PerfCollector) End(evaluations int) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		Duration:    now.Sub(p.start),
		Evaluations: evaluations,
		Phases:      p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.lastPhase = ""
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgDuration time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration

	// Phase breakdown (average durations and share of the iteration)
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	EvalsPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total, minD, maxD time.Duration
	evals := 0
	phaseSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.Duration
		evals += s.Evaluations
		if i == 0 || s.Duration < minD {
			minD = s.Duration
		}
		if s.Duration > maxD {
			maxD = s.Duration
		}
		for phase, d := range s.Phases {
			phaseSum[phase] += d
		}
	}

	avg := total / time.Duration(p.sampleCount)
	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var eps float64
	if total > 0 {
		eps = float64(evals) / total.Seconds()
	}

	return PerfStats{
		AvgDuration:    avg,
		MinDuration:    minD,
		MaxDuration:    maxD,
		PhaseAvg:       phaseAvg,
		PhasePct:       phasePct,
		EvalsPerSecond: eps,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_ms", s.AvgDuration.Milliseconds()),
		slog.Int64("min_ms", s.MinDuration.Milliseconds()),
		slog.Int64("max_ms", s.MaxDuration.Milliseconds()),
		slog.Float64("evals_per_sec", s.EvalsPerSecond),
	}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Iteration   int     `csv:"iteration"`
	AvgMS       int64   `csv:"avg_ms"`
	MinMS       int64   `csv:"min_ms"`
	MaxMS       int64   `csv:"max_ms"`
	EvalsPerSec float64 `csv:"evals_per_sec"`
	EvolvePct   float64 `csv:"evolve_pct"`
	ArchivePct  float64 `csv:"archive_pct"`
	ReportPct   float64 `csv:"report_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(iteration int) PerfStatsCSV {
	return PerfStatsCSV{
		Iteration:   iteration,
		AvgMS:       s.AvgDuration.Milliseconds(),
		MinMS:       s.MinDuration.Milliseconds(),
		MaxMS:       s.MaxDuration.Milliseconds(),
		EvalsPerSec: s.EvalsPerSecond,
		EvolvePct:   s.PhasePct[PhaseEvolve],
		ArchivePct:  s.PhasePct[PhaseArchive],
		ReportPct:   s.PhasePct[PhaseReport],
	}
}
