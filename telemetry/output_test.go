package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/criticality"
)

// ---------- hall of fame ----------

func TestHallOfFameOrderAndCapacity(t *testing.T) {
	hof := NewHallOfFame(3)
	for i, f := range []float64{0.5, 1.5, 0.1, 1.0, 2.0} {
		hof.Consider(HallEntry{Genome: string(rune('a' + i)), Fitness: f})
	}
	got := hof.Entries()
	want := []float64{2.0, 1.5, 1.0}
	if len(got) != len(want) {
		t.Fatalf("size = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Fitness != want[i] {
			t.Errorf("entry %d fitness = %v, want %v", i, got[i].Fitness, want[i])
		}
	}
	if hof.TopFitness() != 2.0 {
		t.Errorf("TopFitness = %v, want 2", hof.TopFitness())
	}
	if hof.Consider(HallEntry{Genome: "z", Fitness: 0.2}) {
		t.Error("an entry below a full hall was added")
	}
}

func TestHallOfFameSkipsDuplicates(t *testing.T) {
	hof := NewHallOfFame(5)
	hof.Consider(HallEntry{Genome: "0110", Fitness: 1})
	if hof.Consider(HallEntry{Genome: "0110", Fitness: 1}) {
		t.Error("duplicate genome added")
	}
	if hof.Size() != 1 {
		t.Errorf("size = %d, want 1", hof.Size())
	}
}

func TestHallOfFameFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	hof := NewHallOfFame(4)
	hof.Consider(HallEntry{Genome: "01", Body: "xyz", Fitness: 0.7, Iteration: 2, Voxels: 1})
	hof.Consider(HallEntry{Genome: "11", Body: "abc", Fitness: 1.2, Iteration: 5, Voxels: 2})
	if err := om.WriteHallOfFame(hof); err != nil {
		t.Fatal(err)
	}

	back, err := LoadHallOfFameFromFile(filepath.Join(dir, "hall_of_fame.json"))
	if err != nil {
		t.Fatal(err)
	}
	got := back.Entries()
	if len(got) != 2 || got[0] != hof.Entries()[0] || got[1] != hof.Entries()[1] {
		t.Errorf("loaded %+v, want %+v", got, hof.Entries())
	}
}

// ---------- output manager ----------

func TestNilOutputManager(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v, want nil, nil", om, err)
	}
	// all writes are no-ops
	if err := om.WriteGeneration(GenerationStats{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteConfig(config.Defaults()); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestWriteGenerations(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := om.WriteGeneration(GenerationStats{Iteration: i, Best: float64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "generations.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "iteration,evaluations,best") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestWriteMeasurementsAndDistribution(t *testing.T) {
	dir := t.TempDir()
	om, _ := NewOutputManager(dir)
	defer om.Close()

	ms := []criticality.Measurement{{Cell: 0, Spatial: 2, Temporal: 5}, {Cell: 3, Failed: true}}
	if err := om.WriteMeasurements("measurements.csv", ms); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "measurements.csv"))
	if !strings.HasPrefix(string(data), "cell,spatial,temporal,failed") {
		t.Errorf("measurements.csv = %q", data)
	}

	d := criticality.Distribution{
		Histogram: criticality.Histogram{1: 4, 2: 2},
		Points:    []criticality.Point{{X: 0, Y: 1.386}, {X: 0.693, Y: 0.693}},
		Fit:       criticality.Fit{Intercept: 1.386, Slope: -1, R2: 1},
	}
	if err := om.WriteDistribution("spatial.csv", d); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "spatial.csv"))
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "1,4,") || !strings.HasPrefix(lines[2], "2,2,") {
		t.Errorf("spatial.csv = %q", data)
	}
}

func TestWritePlot(t *testing.T) {
	dir := t.TempDir()
	om, _ := NewOutputManager(dir)
	defer om.Close()

	d := criticality.Distribution{
		Points: []criticality.Point{{X: 0, Y: 2}, {X: 1, Y: 1}, {X: 2, Y: 0.1}},
		Fit:    criticality.Fit{Intercept: 2, Slope: -1, R2: 0.98},
	}
	if err := om.WritePlot("spatial.png", "spatial", d); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(filepath.Join(dir, "spatial.png")); err != nil || info.Size() == 0 {
		t.Errorf("plot not written: %v", err)
	}

	if err := om.WritePlot("empty.png", "empty", criticality.Distribution{}); err == nil {
		t.Error("plotting an empty distribution should fail")
	}
}
