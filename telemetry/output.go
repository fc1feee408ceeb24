package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/criticality"
)

// DistributionRow is one log-log point of a scored distribution.
type DistributionRow struct {
	Bucket    int     `csv:"bucket"`
	Count     int     `csv:"count"`
	X         float64 `csv:"x"`
	Y         float64 `csv:"y"`
	Predicted float64 `csv:"predicted"`
}

// EvaluationRecord is one fitness evaluation of a continuous optimizer.
type EvaluationRecord struct {
	Eval    int     `csv:"eval"`
	Fitness float64 `csv:"fitness"`
	Params  string  `csv:"params"`
}

// csvLog is an append-only CSV file whose header is written with the first
// record.
type csvLog struct {
	file          *os.File
	headerWritten bool
}

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir  string
	logs map[string]*csvLog
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &OutputManager{dir: dir, logs: make(map[string]*csvLog)}, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteGeneration appends a record to generations.csv.
func (om *OutputManager) WriteGeneration(stats GenerationStats) error {
	if om == nil {
		return nil
	}
	return om.appendCSV("generations.csv", []GenerationStats{stats})
}

// WritePerf appends a record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStatsCSV) error {
	if om == nil {
		return nil
	}
	return om.appendCSV("perf.csv", []PerfStatsCSV{stats})
}

// WriteEvaluation appends a record to evaluations.csv.
func (om *OutputManager) WriteEvaluation(rec EvaluationRecord) error {
	if om == nil {
		return nil
	}
	return om.appendCSV("evaluations.csv", []EvaluationRecord{rec})
}

// WriteMeasurements writes per-cell avalanche measurements to name.
func (om *OutputManager) WriteMeasurements(name string, ms []criticality.Measurement) error {
	if om == nil {
		return nil
	}
	return om.writeCSV(name, ms)
}

// WriteDistribution writes the log-log points of d and the fitted values
// to name.
func (om *OutputManager) WriteDistribution(name string, d criticality.Distribution) error {
	if om == nil {
		return nil
	}
	buckets := d.Histogram.Buckets()
	rows := make([]DistributionRow, len(d.Points))
	for i, p := range d.Points {
		rows[i] = DistributionRow{X: p.X, Y: p.Y, Predicted: d.Fit.Predict(p.X)}
		if i < len(buckets) {
			rows[i].Bucket = buckets[i]
			rows[i].Count = d.Histogram[buckets[i]]
		}
	}
	return om.writeCSV(name, rows)
}

// WritePlot renders d as a log-log plot to name. The format follows the
// file extension.
func (om *OutputManager) WritePlot(name, title string, d criticality.Distribution) error {
	if om == nil {
		return nil
	}
	return WriteLogLogPlot(filepath.Join(om.dir, name), title, d)
}

// WriteJSON saves v as indented JSON.
func (om *OutputManager) WriteJSON(name string, v any) error {
	if om == nil {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// WriteHallOfFame saves the hall of fame as JSON.
func (om *OutputManager) WriteHallOfFame(hof *HallOfFame) error {
	if om == nil || hof == nil {
		return nil
	}

	data, err := hof.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling hall of fame: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "hall_of_fame.json"), data, 0644); err != nil {
		return fmt.Errorf("writing hall_of_fame.json: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, l := range om.logs {
		if err := l.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	om.logs = map[string]*csvLog{}
	return firstErr
}

// appendCSV appends records to a log file kept open until Close.
func (om *OutputManager) appendCSV(name string, records any) error {
	l, ok := om.logs[name]
	if !ok {
		f, err := os.Create(filepath.Join(om.dir, name))
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		l = &csvLog{file: f}
		om.logs[name] = l
	}

	if !l.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, l.file); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		l.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, l.file); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// writeCSV writes records to a new file in one go.
func (om *OutputManager) writeCSV(name string, records any) error {
	f, err := os.Create(filepath.Join(om.dir, name))
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(records, f); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
