// Package storage archives experiment runs and the individuals they
// evaluated.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run describes one experiment invocation.
type Run struct {
	ID      string
	Kind    string // evolve, optimize or validate
	Started time.Time
	Config  string // YAML snapshot of the effective configuration
}

// NewRun creates a run with a fresh random ID.
func NewRun(kind, configYAML string) Run {
	return Run{
		ID:      uuid.NewString(),
		Kind:    kind,
		Started: time.Now().UTC(),
		Config:  configYAML,
	}
}

// Record is one evaluated candidate of a run.
type Record struct {
	RunID     string
	Iteration int
	Genome    string // Bit string or comma-separated parameters
	Body      string // Encoded body, empty when the genome mapped to nothing
	Fitness   float64
}

// Store persists runs and records.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	SaveRecords(ctx context.Context, runID string, records []Record) error
	Records(ctx context.Context, runID string) ([]Record, error)
	Best(ctx context.Context, runID string, n int) ([]Record, error)
	Close() error
}

// New opens the store selected by driver. The store is initialized.
func New(ctx context.Context, driver, path string) (Store, error) {
	var s Store
	switch driver {
	case "", "memory":
		s = NewMemoryStore()
	case "sqlite":
		s = NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("init %s store: %w", driver, err)
	}
	return s, nil
}

// sortBest orders records by descending fitness, then by iteration.
func sortBest(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Fitness != rs[j].Fitness {
			return rs[i].Fitness > rs[j].Fitness
		}
		return rs[i].Iteration < rs[j].Iteration
	})
}
