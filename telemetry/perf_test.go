package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.Start()
		pc.StartPhase(PhaseEvolve)
		time.Sleep(200 * time.Microsecond)
		pc.StartPhase(PhaseArchive)
		time.Sleep(100 * time.Microsecond)
		pc.End(8)
	}

	stats := pc.Stats()
	if stats.AvgDuration <= 0 {
		t.Error("expected positive average duration")
	}
	if _, ok := stats.PhaseAvg[PhaseEvolve]; !ok {
		t.Error("expected evolve phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[PhaseArchive]; !ok {
		t.Error("expected archive phase to be tracked")
	}
	if stats.EvalsPerSecond <= 0 {
		t.Error("expected positive evaluation throughput")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(3)

	// the slow samples fall out of the window
	for i := 0; i < 3; i++ {
		pc.Start()
		time.Sleep(5 * time.Millisecond)
		pc.End(1)
	}
	for i := 0; i < 3; i++ {
		pc.Start()
		pc.End(1)
	}

	if stats := pc.Stats(); stats.MaxDuration >= 5*time.Millisecond {
		t.Errorf("max duration %v still includes evicted samples", stats.MaxDuration)
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.Start()
		pc.StartPhase(PhaseReport)
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase(PhaseEvolve)
		time.Sleep(200 * time.Microsecond)
		pc.End(1)
	}

	stats := pc.Stats()
	if stats.PhasePct[PhaseEvolve] <= stats.PhasePct[PhaseReport] {
		t.Errorf("expected evolve (%v%%) > report (%v%%)", stats.PhasePct[PhaseEvolve], stats.PhasePct[PhaseReport])
	}
	row := stats.ToCSV(4)
	if row.Iteration != 4 || row.EvolvePct != stats.PhasePct[PhaseEvolve] {
		t.Errorf("ToCSV = %+v", row)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	stats := NewPerfCollector(10).Stats()

	if stats.AvgDuration != 0 {
		t.Error("expected zero avg duration for empty collector")
	}
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("expected non-nil phase maps")
	}
}
